package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/agora-backend/internal/pkg/errors"
)

type PostgresSettings struct {
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN prefers DATABASE_URL and otherwise assembles a URL from the parts.
func (p PostgresSettings) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return strings.TrimSpace(p.URL)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.Name,
	}
	q := u.Query()
	q.Set("sslmode", p.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

type Config struct {
	LogMode     string
	HTTPAddr    string
	CORSOrigins []string
	ServiceName string
	Environment string

	Postgres PostgresSettings

	JWTSecretKey     string
	JWTIssuer        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	MagicLinkTTL     time.Duration
	MagicLinkBaseURL string

	SendGridAPIKey  string
	SendGridBaseURL string
	MailFromEmail   string
	MailFromName    string

	AnalysisBaseURL     string
	AnalysisAPIKey      string
	AnalysisTimeout     time.Duration
	AnalysisMaxRetries  int
	ContentEmbeddingDim int
	ClaimEmbeddingDim   int

	SimilarityThreshold    float64
	CanonicalTopK          int
	RelationContextMaxADUs int

	FeedRisingWindow          time.Duration
	FeedControversialMinVotes int

	AgentRateWindow  time.Duration
	OwnerMaxPosts    int64
	OwnerMaxReplies  int64
	OwnerMaxVotes    int64
	AgentPostsPerMin int
	AgentReplyPerMin int
	AgentVotesPerMin int

	WorkerConcurrency          int
	WorkerPollInterval         time.Duration
	WorkerStaleRunning         time.Duration
	WorkerRetryBase            time.Duration
	WorkerRetryMax             time.Duration
	JobMaxAttempts             int
	JobMaxRequeues             int
	DeadLetterAutoRequeueAfter time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SSEBusChannel string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	SearchIndexPath   string
	SearchHybridAlpha float64

	Temporal TemporalSettings

	MetricsEnabled        bool
	MetricsScrapeInterval time.Duration
	OtelEnabled           bool
	OtelEndpoint          string
	OtelHeaders           string
	OtelInsecure          bool
	OtelSampleRatio       float64
}

type TemporalSettings struct {
	Address               string
	Namespace             string
	TaskQueue             string
	ClientCertPath        string
	ClientKeyPath         string
	ClientCAPath          string
	AutoRegisterNamespace bool
	WorkerConcurrency     int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("SERVICE_NAME", "agora-backend")
	v.SetDefault("ENVIRONMENT", "development")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_NAME", "agora")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 25)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 10)
	v.SetDefault("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute)

	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_ISSUER", "agora")
	v.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	v.SetDefault("MAGIC_LINK_TTL", 15*time.Minute)
	v.SetDefault("MAGIC_LINK_BASE_URL", "http://localhost:3000/auth/verify")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("SENDGRID_BASE_URL", "https://api.sendgrid.com")
	v.SetDefault("MAIL_FROM_EMAIL", "no-reply@agora.local")
	v.SetDefault("MAIL_FROM_NAME", "Agora")

	v.SetDefault("ANALYSIS_BASE_URL", "")
	v.SetDefault("ANALYSIS_API_KEY", "")
	v.SetDefault("ANALYSIS_TIMEOUT", 20*time.Second)
	v.SetDefault("ANALYSIS_MAX_RETRIES", 2)
	v.SetDefault("CONTENT_EMBEDDING_DIM", 1536)
	v.SetDefault("CLAIM_EMBEDDING_DIM", 768)

	v.SetDefault("SIMILARITY_THRESHOLD", 0.75)
	v.SetDefault("CANONICAL_TOP_K", 5)
	v.SetDefault("RELATION_CONTEXT_MAX_ADUS", 20)

	v.SetDefault("FEED_RISING_WINDOW", 24*time.Hour)
	v.SetDefault("FEED_CONTROVERSIAL_MIN_VOTES", 5)

	v.SetDefault("AGENT_RATE_WINDOW", time.Hour)
	v.SetDefault("OWNER_MAX_POSTS_PER_WINDOW", 100)
	v.SetDefault("OWNER_MAX_REPLIES_PER_WINDOW", 500)
	v.SetDefault("OWNER_MAX_VOTES_PER_WINDOW", 1500)
	v.SetDefault("AGENT_POSTS_PER_MINUTE", 10)
	v.SetDefault("AGENT_REPLIES_PER_MINUTE", 30)
	v.SetDefault("AGENT_VOTES_PER_MINUTE", 60)

	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("WORKER_POLL_INTERVAL", time.Second)
	v.SetDefault("WORKER_STALE_RUNNING", 2*time.Minute)
	v.SetDefault("WORKER_RETRY_BASE", 30*time.Second)
	v.SetDefault("WORKER_RETRY_MAX", 30*time.Minute)
	v.SetDefault("JOB_MAX_ATTEMPTS", 5)
	v.SetDefault("JOB_MAX_REQUEUES", 3)
	v.SetDefault("DEADLETTER_AUTO_REQUEUE_AFTER", time.Duration(0))

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SSE_BUS_CHANNEL", "agora:sse")

	v.SetDefault("NEO4J_URI", "")
	v.SetDefault("NEO4J_USER", "neo4j")
	v.SetDefault("NEO4J_PASSWORD", "")
	v.SetDefault("NEO4J_DATABASE", "")

	v.SetDefault("SEARCH_INDEX_PATH", "data/search.bleve")
	v.SetDefault("SEARCH_HYBRID_ALPHA", 0.5)

	v.SetDefault("TEMPORAL_ADDRESS", "")
	v.SetDefault("TEMPORAL_NAMESPACE", "agora")
	v.SetDefault("TEMPORAL_TASK_QUEUE", "agora-analysis")
	v.SetDefault("TEMPORAL_CLIENT_CERT_PATH", "")
	v.SetDefault("TEMPORAL_CLIENT_KEY_PATH", "")
	v.SetDefault("TEMPORAL_CA_PATH", "")
	v.SetDefault("TEMPORAL_AUTO_REGISTER_NAMESPACE", true)
	v.SetDefault("TEMPORAL_WORKER_CONCURRENCY", 4)

	v.SetDefault("METRICS_ENABLED", false)
	v.SetDefault("METRICS_SCRAPE_INTERVAL", 15*time.Second)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_HEADERS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
}

// NewViper reads defaults, then an optional config file, then the
// environment. Later sources win.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile == "" {
		configFile = strings.TrimSpace(v.GetString("AGORA_CONFIG"))
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configFile)
		}
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadConfig decodes v into a Config and checks the required keys.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		LogMode:     v.GetString("LOG_MODE"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		ServiceName: v.GetString("SERVICE_NAME"),
		Environment: v.GetString("ENVIRONMENT"),

		Postgres: PostgresSettings{
			URL:             v.GetString("DATABASE_URL"),
			Host:            v.GetString("POSTGRES_HOST"),
			Port:            v.GetInt("POSTGRES_PORT"),
			User:            v.GetString("POSTGRES_USER"),
			Password:        v.GetString("POSTGRES_PASSWORD"),
			Name:            v.GetString("POSTGRES_NAME"),
			SSLMode:         v.GetString("POSTGRES_SSLMODE"),
			MaxOpenConns:    v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("POSTGRES_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("POSTGRES_CONN_MAX_LIFETIME"),
		},

		JWTSecretKey:     v.GetString("JWT_SECRET_KEY"),
		JWTIssuer:        v.GetString("JWT_ISSUER"),
		AccessTokenTTL:   v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:  v.GetDuration("REFRESH_TOKEN_TTL"),
		MagicLinkTTL:     v.GetDuration("MAGIC_LINK_TTL"),
		MagicLinkBaseURL: v.GetString("MAGIC_LINK_BASE_URL"),

		SendGridAPIKey:  v.GetString("SENDGRID_API_KEY"),
		SendGridBaseURL: v.GetString("SENDGRID_BASE_URL"),
		MailFromEmail:   v.GetString("MAIL_FROM_EMAIL"),
		MailFromName:    v.GetString("MAIL_FROM_NAME"),

		AnalysisBaseURL:     v.GetString("ANALYSIS_BASE_URL"),
		AnalysisAPIKey:      v.GetString("ANALYSIS_API_KEY"),
		AnalysisTimeout:     v.GetDuration("ANALYSIS_TIMEOUT"),
		AnalysisMaxRetries:  v.GetInt("ANALYSIS_MAX_RETRIES"),
		ContentEmbeddingDim: v.GetInt("CONTENT_EMBEDDING_DIM"),
		ClaimEmbeddingDim:   v.GetInt("CLAIM_EMBEDDING_DIM"),

		SimilarityThreshold:    v.GetFloat64("SIMILARITY_THRESHOLD"),
		CanonicalTopK:          v.GetInt("CANONICAL_TOP_K"),
		RelationContextMaxADUs: v.GetInt("RELATION_CONTEXT_MAX_ADUS"),

		FeedRisingWindow:          v.GetDuration("FEED_RISING_WINDOW"),
		FeedControversialMinVotes: v.GetInt("FEED_CONTROVERSIAL_MIN_VOTES"),

		AgentRateWindow:  v.GetDuration("AGENT_RATE_WINDOW"),
		OwnerMaxPosts:    v.GetInt64("OWNER_MAX_POSTS_PER_WINDOW"),
		OwnerMaxReplies:  v.GetInt64("OWNER_MAX_REPLIES_PER_WINDOW"),
		OwnerMaxVotes:    v.GetInt64("OWNER_MAX_VOTES_PER_WINDOW"),
		AgentPostsPerMin: v.GetInt("AGENT_POSTS_PER_MINUTE"),
		AgentReplyPerMin: v.GetInt("AGENT_REPLIES_PER_MINUTE"),
		AgentVotesPerMin: v.GetInt("AGENT_VOTES_PER_MINUTE"),

		WorkerConcurrency:          v.GetInt("WORKER_CONCURRENCY"),
		WorkerPollInterval:         v.GetDuration("WORKER_POLL_INTERVAL"),
		WorkerStaleRunning:         v.GetDuration("WORKER_STALE_RUNNING"),
		WorkerRetryBase:            v.GetDuration("WORKER_RETRY_BASE"),
		WorkerRetryMax:             v.GetDuration("WORKER_RETRY_MAX"),
		JobMaxAttempts:             v.GetInt("JOB_MAX_ATTEMPTS"),
		JobMaxRequeues:             v.GetInt("JOB_MAX_REQUEUES"),
		DeadLetterAutoRequeueAfter: v.GetDuration("DEADLETTER_AUTO_REQUEUE_AFTER"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		SSEBusChannel: v.GetString("SSE_BUS_CHANNEL"),

		Neo4jURI:      v.GetString("NEO4J_URI"),
		Neo4jUser:     v.GetString("NEO4J_USER"),
		Neo4jPassword: v.GetString("NEO4J_PASSWORD"),
		Neo4jDatabase: v.GetString("NEO4J_DATABASE"),

		SearchIndexPath:   v.GetString("SEARCH_INDEX_PATH"),
		SearchHybridAlpha: v.GetFloat64("SEARCH_HYBRID_ALPHA"),

		Temporal: TemporalSettings{
			Address:               v.GetString("TEMPORAL_ADDRESS"),
			Namespace:             v.GetString("TEMPORAL_NAMESPACE"),
			TaskQueue:             v.GetString("TEMPORAL_TASK_QUEUE"),
			ClientCertPath:        v.GetString("TEMPORAL_CLIENT_CERT_PATH"),
			ClientKeyPath:         v.GetString("TEMPORAL_CLIENT_KEY_PATH"),
			ClientCAPath:          v.GetString("TEMPORAL_CA_PATH"),
			AutoRegisterNamespace: v.GetBool("TEMPORAL_AUTO_REGISTER_NAMESPACE"),
			WorkerConcurrency:     v.GetInt("TEMPORAL_WORKER_CONCURRENCY"),
		},

		MetricsEnabled:        v.GetBool("METRICS_ENABLED"),
		MetricsScrapeInterval: v.GetDuration("METRICS_SCRAPE_INTERVAL"),
		OtelEnabled:           v.GetBool("OTEL_ENABLED"),
		OtelEndpoint:          v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelHeaders:           v.GetString("OTEL_EXPORTER_OTLP_HEADERS"),
		OtelInsecure:          v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		OtelSampleRatio:       v.GetFloat64("OTEL_SAMPLE_RATIO"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}
	if strings.TrimSpace(c.Postgres.URL) == "" && strings.TrimSpace(c.Postgres.Host) == "" {
		return errors.New("DATABASE_URL or POSTGRES_HOST is required")
	}
	if c.ContentEmbeddingDim <= 0 || c.ClaimEmbeddingDim <= 0 {
		return errors.New("embedding dimensions must be positive")
	}
	if c.SearchHybridAlpha < 0 || c.SearchHybridAlpha > 1 {
		return errors.Newf("SEARCH_HYBRID_ALPHA must be in [0,1], got %v", c.SearchHybridAlpha)
	}
	return nil
}
