package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/jobs"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	analysisRequests *CounterVec
	analysisLatency  *HistogramVec

	pipelineSteps   *CounterVec
	pipelineLatency *HistogramVec
	jobOutcomes     *CounterVec

	rateLimited     *CounterVec
	rateLimitOpen   *CounterVec
	queueDepth      *GaugeVec
	pgStats         *GaugeVec
	redisUp         *Gauge
	sseClients      *Gauge
	searchRequests  *CounterVec
	scrapeInterval  time.Duration
	collectorsOrder []collector
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide metrics, nil when disabled. All methods
// are nil-safe.
func Current() *Metrics {
	return instance
}

// Init enables the process-wide metrics when enabled is true.
func Init(log *logger.Logger, enabled bool, scrapeInterval time.Duration) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics(scrapeInterval)
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func NewMetrics(scrapeInterval time.Duration) *Metrics {
	if scrapeInterval <= 0 {
		scrapeInterval = 10 * time.Second
	}
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	m := &Metrics{
		apiRequests: NewCounterVec("agora_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("agora_api_request_duration_seconds", "API request latency in seconds.", []string{"method", "route", "status"}, latency),
		apiInflight: NewGauge("agora_api_inflight_requests", "In-flight API requests."),

		analysisRequests: NewCounterVec("agora_analysis_requests_total", "Analysis service calls by endpoint/status.", []string{"endpoint", "status"}),
		analysisLatency:  NewHistogramVec("agora_analysis_request_duration_seconds", "Analysis service latency in seconds.", []string{"endpoint"}, latency),

		pipelineSteps:   NewCounterVec("agora_pipeline_steps_total", "Analysis pipeline step outcomes.", []string{"step", "status"}),
		pipelineLatency: NewHistogramVec("agora_pipeline_step_duration_seconds", "Analysis pipeline step duration in seconds.", []string{"step"}, latency),
		jobOutcomes:     NewCounterVec("agora_job_outcomes_total", "Job run outcomes by job type.", []string{"job_type", "status"}),

		rateLimited:    NewCounterVec("agora_rate_limited_total", "Rejected agent writes by scope/action.", []string{"scope", "action"}),
		rateLimitOpen:  NewCounterVec("agora_rate_limit_fail_open_total", "Rate checks that failed open by scope.", []string{"scope"}),
		queueDepth:     NewGaugeVec("agora_job_queue_depth", "Job runs by status.", []string{"status"}),
		pgStats:        NewGaugeVec("agora_postgres_pool", "Postgres pool stats.", []string{"stat"}),
		redisUp:        NewGauge("agora_redis_up", "Redis reachable (1) or not (0)."),
		sseClients:     NewGauge("agora_sse_clients", "Connected SSE clients."),
		searchRequests: NewCounterVec("agora_search_requests_total", "Search requests by mode/status.", []string{"mode", "status"}),
		scrapeInterval: scrapeInterval,
	}
	m.collectorsOrder = []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.analysisRequests, m.analysisLatency,
		m.pipelineSteps, m.pipelineLatency, m.jobOutcomes,
		m.rateLimited, m.rateLimitOpen,
		m.queueDepth, m.pgStats, m.redisUp, m.sseClients, m.searchRequests,
	}
	return m
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectorsOrder {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveAnalysisRequest(endpoint, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.analysisRequests.Inc(endpoint, status)
	m.analysisLatency.Observe(dur.Seconds(), endpoint)
}

func (m *Metrics) ObserveStep(step, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.pipelineSteps.Inc(step, status)
	m.pipelineLatency.Observe(dur.Seconds(), step)
}

func (m *Metrics) IncJobOutcome(jobType, status string) {
	if m != nil {
		m.jobOutcomes.Inc(jobType, status)
	}
}

func (m *Metrics) IncRateLimited(scope, action string) {
	if m != nil {
		m.rateLimited.Inc(scope, action)
	}
}

func (m *Metrics) RateLimited(scope, action string) float64 {
	if m == nil {
		return 0
	}
	return m.rateLimited.Value(scope, action)
}

func (m *Metrics) IncRateLimitFailOpen(scope string) {
	if m != nil {
		m.rateLimitOpen.Inc(scope)
	}
}

func (m *Metrics) RateLimitFailOpen(scope string) float64 {
	if m == nil {
		return 0
	}
	return m.rateLimitOpen.Value(scope)
}

func (m *Metrics) SetSSEClients(n int) {
	if m != nil {
		m.sseClients.Set(float64(n))
	}
}

func (m *Metrics) IncSearch(mode, status string) {
	if m != nil {
		m.searchRequests.Inc(mode, status)
	}
}

func (m *Metrics) every(ctx context.Context, fn func()) {
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	m.every(ctx, func() {
		sqlDB, err := db.DB()
		if err != nil {
			log.Warn("metrics: postgres stats unavailable", "error", err)
			return
		}
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	})
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client) {
	if m == nil || rdb == nil {
		return
	}
	m.every(ctx, func() {
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			log.Warn("metrics: redis ping failed", "error", err)
			return
		}
		m.redisUp.Set(1)
	})
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	statuses := []string{jobs.StatusQueued, jobs.StatusRunning, jobs.StatusFailed, jobs.StatusSucceeded, jobs.StatusDeadLetter}
	m.every(ctx, func() {
		for _, s := range statuses {
			m.queueDepth.Set(0, s)
		}
		var rows []struct {
			Status string
			Count  int64
		}
		if err := db.WithContext(ctx).
			Model(&types.JobRun{}).
			Select("status, count(*) as count").
			Group("status").
			Scan(&rows).Error; err != nil {
			log.Warn("metrics: job queue depth query failed", "error", err)
			return
		}
		for _, row := range rows {
			status := strings.TrimSpace(row.Status)
			if status == "" {
				status = "unknown"
			}
			m.queueDepth.Set(float64(row.Count), status)
		}
	})
}
