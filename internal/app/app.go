package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/agora-backend/internal/data/db"
	"github.com/yungbote/agora-backend/internal/http"
	"github.com/yungbote/agora-backend/internal/observability"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/realtime"
	"github.com/yungbote/agora-backend/internal/search"
)

// Options selects which process-local resources New opens.
type Options struct {
	// Search opens the on-disk lexical index. Only one process may hold it.
	Search bool
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics

	pg           *db.PostgresService
	index        *search.LexicalIndex
	otelShutdown func(context.Context) error
}

func New(cfg Config, opts Options) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, errors.Wrap(err, "init logger")
	}
	a := &App{Log: log, Cfg: cfg}

	a.Metrics = observability.Init(log, cfg.MetricsEnabled, cfg.MetricsScrapeInterval)
	a.otelShutdown = observability.InitOTel(context.Background(), log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OtelEndpoint,
		Headers:     cfg.OtelHeaders,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})

	pg, err := db.NewPostgresService(db.PostgresConfig{
		DSN:             cfg.Postgres.DSN(),
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}, log)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "init postgres")
	}
	a.pg = pg
	a.DB = pg.DB()

	a.Clients, err = wireClients(log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	if opts.Search {
		a.index, err = search.OpenLexical(cfg.SearchIndexPath)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "open search index")
		}
	}

	a.SSEHub = realtime.NewSSEHub(log)
	a.Repos = wireRepos(a.DB, log)
	a.Services, err = wireServices(a.DB, log, cfg, a.Repos, a.Clients, a.SSEHub, a.index)
	if err != nil {
		a.Close()
		return nil, err
	}

	handlers := wireHandlers(log, a.DB, a.Clients, a.Services, a.SSEHub)
	middleware := wireMiddleware(log, a.Services)
	a.Router = wireRouter(log, cfg, handlers, middleware, a.Services, a.Metrics)
	return a, nil
}

// Migrate brings the schema up to date and creates the graph constraints.
func (a *App) Migrate(ctx context.Context) error {
	a.Log.Info("Running migrations...")
	if err := db.Migrate(a.DB.WithContext(ctx), db.VectorDims{
		Content: a.Cfg.ContentEmbeddingDim,
		Claim:   a.Cfg.ClaimEmbeddingDim,
	}); err != nil {
		return errors.Wrap(err, "postgres migrate")
	}
	a.Services.Graph.EnsureSchema(ctx)
	return nil
}

func (a *App) startCollectors(ctx context.Context) {
	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
	a.Metrics.StartJobQueueCollector(ctx, a.Log, a.DB)
}

func (a *App) runWorkers(ctx context.Context, g *errgroup.Group) error {
	if len(a.Services.JobRegistry.Types()) == 0 {
		a.Log.Warn("No job handlers registered; the worker will leave analysis jobs queued")
	}
	g.Go(func() error { return a.Services.JobWorker.Run(ctx) })
	if a.Services.TemporalWorker != nil {
		if err := a.Services.TemporalWorker.Start(ctx); err != nil {
			return errors.Wrap(err, "start temporal worker")
		}
	}
	return nil
}

// RunServer serves the API until ctx is cancelled. withWorker also runs the
// job worker in this process.
func (a *App) RunServer(ctx context.Context, withWorker bool) error {
	g, gctx := errgroup.WithContext(ctx)
	a.startCollectors(gctx)

	if a.Clients.SSEBus != nil {
		if err := a.Clients.SSEBus.StartForwarder(gctx, a.SSEHub.Broadcast); err != nil {
			return errors.Wrap(err, "start SSE bus forwarder")
		}
	}
	if withWorker {
		if err := a.runWorkers(gctx, g); err != nil {
			return err
		}
	}

	srv := &http.Server{Engine: a.Router}
	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
		return srv.Run(gctx, a.Cfg.HTTPAddr)
	})
	return g.Wait()
}

// RunWorker runs only the background job worker.
func (a *App) RunWorker(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	a.startCollectors(gctx)
	if err := a.runWorkers(gctx, g); err != nil {
		return err
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.index != nil {
		_ = a.index.Close()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
