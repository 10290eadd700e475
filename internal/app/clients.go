package app

import (
	"context"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/analysis"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/platform/mailer"
	"github.com/yungbote/agora-backend/internal/platform/neo4jdb"
	"github.com/yungbote/agora-backend/internal/platform/sendgrid"
	"github.com/yungbote/agora-backend/internal/realtime/bus"
	"github.com/yungbote/agora-backend/internal/temporalx"
)

// Clients holds connections to external systems. Everything except the
// mailer is optional and nil when unconfigured.
type Clients struct {
	Redis    *goredis.Client
	SSEBus   bus.Bus
	Neo4j    *neo4jdb.Client
	Analysis analysis.Client
	Mailer   mailer.Mailer
	Temporal temporalsdkclient.Client
}

func (c Config) temporalConfig() temporalx.Config {
	return temporalx.Config{
		Address:               c.Temporal.Address,
		Namespace:             c.Temporal.Namespace,
		TaskQueue:             c.Temporal.TaskQueue,
		ClientCertPath:        c.Temporal.ClientCertPath,
		ClientKeyPath:         c.Temporal.ClientKeyPath,
		ClientCAPath:          c.Temporal.ClientCAPath,
		AutoRegisterNamespace: c.Temporal.AutoRegisterNamespace,
	}
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:        addr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return Clients{}, errors.Wrap(err, "redis ping")
		}
		out.Redis = rdb
		b, err := bus.NewRedisBus(log, rdb, cfg.SSEBusChannel)
		if err != nil {
			out.Close()
			return Clients{}, errors.Wrap(err, "init redis SSE bus")
		}
		out.SSEBus = b
	}

	neo, err := neo4jdb.New(log, neo4jdb.Config{
		URI:      cfg.Neo4jURI,
		User:     cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	})
	if err != nil {
		out.Close()
		return Clients{}, errors.Wrap(err, "init neo4j")
	}
	out.Neo4j = neo

	if strings.TrimSpace(cfg.AnalysisBaseURL) != "" {
		ai, err := analysis.New(log, analysis.Config{
			BaseURL:    cfg.AnalysisBaseURL,
			APIKey:     cfg.AnalysisAPIKey,
			Timeout:    cfg.AnalysisTimeout,
			MaxRetries: cfg.AnalysisMaxRetries,
			ContentDim: cfg.ContentEmbeddingDim,
			ClaimDim:   cfg.ClaimEmbeddingDim,
		})
		if err != nil {
			out.Close()
			return Clients{}, errors.Wrap(err, "init analysis client")
		}
		out.Analysis = ai
	} else {
		log.Warn("ANALYSIS_BASE_URL not set; argument analysis and semantic search are disabled")
	}

	m, err := mailer.New(log, sendgrid.Config{
		APIKey:           cfg.SendGridAPIKey,
		BaseURL:          cfg.SendGridBaseURL,
		DefaultFromEmail: cfg.MailFromEmail,
		DefaultFromName:  cfg.MailFromName,
	})
	if err != nil {
		out.Close()
		return Clients{}, errors.Wrap(err, "init mailer")
	}
	out.Mailer = m

	tc, err := temporalx.NewClient(log, cfg.temporalConfig())
	if err != nil {
		out.Close()
		return Clients{}, errors.Wrap(err, "init temporal client")
	}
	out.Temporal = tc

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(context.Background())
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
