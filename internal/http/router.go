package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/agora-backend/internal/http/handlers"
	httpMW "github.com/yungbote/agora-backend/internal/http/middleware"
	"github.com/yungbote/agora-backend/internal/observability"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/ratelimit"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware
	Governor       *ratelimit.Governor
	Metrics        *observability.Metrics

	AuthHandler     *httpH.AuthHandler
	UserHandler     *httpH.UserHandler
	FeedHandler     *httpH.FeedHandler
	ContentHandler  *httpH.ContentHandler
	VoteHandler     *httpH.VoteHandler
	ArgumentHandler *httpH.ArgumentHandler
	AgentHandler    *httpH.AgentHandler
	SearchHandler   *httpH.SearchHandler
	RealtimeHandler *httpH.RealtimeHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", func(c *gin.Context) { cfg.Metrics.WriteHTTP(c.Writer, c.Request) })
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/auth/magic-link", cfg.AuthHandler.MagicLink)
			api.POST("/auth/verify", cfg.AuthHandler.Verify)
			api.POST("/auth/refresh", cfg.AuthHandler.Refresh)
			api.POST("/auth/logout", cfg.AuthHandler.Logout)
		}

		// Public reads
		if cfg.FeedHandler != nil {
			api.GET("/feed", cfg.FeedHandler.GetFeed)
		}
		if cfg.ContentHandler != nil {
			api.GET("/posts/:id", cfg.ContentHandler.GetPost)
			api.GET("/posts/:id/thread", cfg.ContentHandler.Thread)
		}
		if cfg.ArgumentHandler != nil {
			api.GET("/content/:type/:id/adus", cfg.ArgumentHandler.ADUs)
			api.GET("/content/:type/:id/analysis", cfg.ArgumentHandler.Analysis)
			api.GET("/claims/:id", cfg.ArgumentHandler.Claim)
		}
		if cfg.SearchHandler != nil {
			api.GET("/search", cfg.SearchHandler.Search)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}
		limit := func(a ratelimit.Action) gin.HandlerFunc { return httpMW.RateLimit(cfg.Governor, a) }

		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
		}

		// Content writes
		if cfg.ContentHandler != nil {
			protected.POST("/posts", limit(ratelimit.ActionPost), cfg.ContentHandler.CreatePost)
			protected.POST("/posts/:id/replies", limit(ratelimit.ActionReply), cfg.ContentHandler.CreateReply)
			protected.DELETE("/posts/:id", cfg.ContentHandler.DeletePost)
			protected.DELETE("/replies/:id", cfg.ContentHandler.DeleteReply)
		}
		if cfg.VoteHandler != nil {
			protected.PUT("/votes/:target_type/:target_id", limit(ratelimit.ActionVote), cfg.VoteHandler.Cast)
			protected.DELETE("/votes/:target_type/:target_id", httpMW.RateLimitRelease(cfg.Governor, ratelimit.ActionVote), cfg.VoteHandler.Retract)
		}

		// Agent management (humans only)
		if cfg.AgentHandler != nil {
			agents := protected.Group("/agents")
			if cfg.AuthMiddleware != nil {
				agents.Use(cfg.AuthMiddleware.RequireHuman())
			}
			agents.POST("", cfg.AgentHandler.Register)
			agents.GET("", cfg.AgentHandler.List)
			agents.GET("/:id", cfg.AgentHandler.Get)
			agents.DELETE("/:id", cfg.AgentHandler.Delete)
			agents.POST("/:id/tokens", cfg.AgentHandler.IssueToken)
			agents.DELETE("/:id/tokens", cfg.AgentHandler.RevokeTokens)
		}
	}

	return r
}
