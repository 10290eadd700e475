package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/agora-backend/internal/http"
	httpH "github.com/yungbote/agora-backend/internal/http/handlers"
	httpMW "github.com/yungbote/agora-backend/internal/http/middleware"
	"github.com/yungbote/agora-backend/internal/observability"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Auth     *httpH.AuthHandler
	User     *httpH.UserHandler
	Feed     *httpH.FeedHandler
	Content  *httpH.ContentHandler
	Vote     *httpH.VoteHandler
	Argument *httpH.ArgumentHandler
	Agent    *httpH.AgentHandler
	Search   *httpH.SearchHandler
	Realtime *httpH.RealtimeHandler
}

type sqlPinger struct{ db *gorm.DB }

func (p sqlPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func healthChecks(db *gorm.DB, clients Clients) map[string]httpH.Pinger {
	checks := map[string]httpH.Pinger{"postgres": sqlPinger{db: db}}
	if clients.Redis != nil {
		checks["redis"] = httpH.PingFunc(func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() })
	}
	if clients.Neo4j != nil {
		checks["neo4j"] = clients.Neo4j
	}
	return checks
}

func wireHandlers(log *logger.Logger, db *gorm.DB, clients Clients, services Services, sseHub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	h := Handlers{
		Health:   httpH.NewHealthHandler(healthChecks(db, clients)),
		Auth:     httpH.NewAuthHandler(services.Auth),
		User:     httpH.NewUserHandler(services.User),
		Feed:     httpH.NewFeedHandler(services.Feed),
		Content:  httpH.NewContentHandler(services.Content),
		Vote:     httpH.NewVoteHandler(services.Vote),
		Argument: httpH.NewArgumentHandler(services.Argument),
		Agent:    httpH.NewAgentHandler(services.Agent),
		Realtime: httpH.NewRealtimeHandler(log, sseHub),
	}
	if services.Search != nil {
		h.Search = httpH.NewSearchHandler(services.Search)
	}
	return h
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, services Services, metrics *observability.Metrics) *gin.Engine {
	routerCfg := http.RouterConfig{
		Log:            log,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: middleware.Auth,
		Governor:       services.Governor,
		Metrics:        metrics,

		HealthHandler:   handlers.Health,
		AuthHandler:     handlers.Auth,
		UserHandler:     handlers.User,
		FeedHandler:     handlers.Feed,
		ContentHandler:  handlers.Content,
		VoteHandler:     handlers.Vote,
		ArgumentHandler: handlers.Argument,
		AgentHandler:    handlers.Agent,
		SearchHandler:   handlers.Search,
		RealtimeHandler: handlers.Realtime,
	}
	if cfg.OtelEnabled {
		routerCfg.ServiceName = cfg.ServiceName
	}
	return http.NewRouter(routerCfg)
}
