package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/agora-backend/internal/data/aggregates"
	"github.com/yungbote/agora-backend/internal/data/graph"
	"github.com/yungbote/agora-backend/internal/domain/agent"
	"github.com/yungbote/agora-backend/internal/feed"
	"github.com/yungbote/agora-backend/internal/jobs/pipeline/analyze_content"
	jobruntime "github.com/yungbote/agora-backend/internal/jobs/runtime"
	"github.com/yungbote/agora-backend/internal/jobs/worker"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/ratelimit"
	"github.com/yungbote/agora-backend/internal/realtime"
	"github.com/yungbote/agora-backend/internal/search"
	"github.com/yungbote/agora-backend/internal/services"
	"github.com/yungbote/agora-backend/internal/temporalx"
	"github.com/yungbote/agora-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Tx     aggregates.TxRunner
	Signer *services.TokenSigner

	Auth     services.AuthService
	User     services.UserService
	Agent    services.AgentService
	Content  services.ContentService
	Vote     services.VoteService
	Argument services.ArgumentService
	Jobs     services.JobService
	Notifier services.AnalysisNotifier

	Feed     *feed.Engine
	Search   *search.Service
	Governor *ratelimit.Governor
	Graph    *graph.ArgumentGraph

	// Job infra
	JobRegistry    *jobruntime.Registry
	JobWorker      *worker.Worker
	TemporalWorker *temporalworker.Runner
}

// publisher picks where analysis events go: the Redis bus when configured so
// whichever API instance holds the author's stream delivers them, else the
// local hub.
func publisher(clients Clients, hub *realtime.SSEHub) realtime.Publisher {
	if clients.SSEBus != nil {
		return clients.SSEBus
	}
	return hub
}

func perAgentLimiter(cfg Config, clients Clients) ratelimit.Limiter {
	rates := map[ratelimit.Action]ratelimit.Rate{
		ratelimit.ActionPost:  {Limit: cfg.AgentPostsPerMin, Per: time.Minute},
		ratelimit.ActionReply: {Limit: cfg.AgentReplyPerMin, Per: time.Minute},
		ratelimit.ActionVote:  {Limit: cfg.AgentVotesPerMin, Per: time.Minute},
	}
	if clients.Redis != nil {
		return ratelimit.NewRedisLimiter(clients.Redis, rates, "agora:rl")
	}
	return ratelimit.NewMemoryLimiter(rates)
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, clients Clients, hub *realtime.SSEHub, index *search.LexicalIndex) (Services, error) {
	log.Info("Wiring services...")
	var out Services

	out.Tx = aggregates.NewGormTxRunner(db)
	out.Signer = services.NewTokenSigner(cfg.JWTSecretKey, cfg.JWTIssuer)
	out.Notifier = services.NewAnalysisNotifier(publisher(clients, hub), log)
	out.Graph = graph.NewArgumentGraph(clients.Neo4j, log)

	out.Agent = services.NewAgentService(log, out.Tx, r.User, r.Agent, r.AgentToken, out.Signer)
	out.Auth = services.NewAuthService(log, out.Tx, r.User, r.UserToken, r.MagicLink, out.Agent, clients.Mailer, out.Signer, services.AuthConfig{
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		MagicLinkTTL:  cfg.MagicLinkTTL,
		MagicLinkBase: cfg.MagicLinkBaseURL,
	})
	out.User = services.NewUserService(log, r.User, r.Agent)
	out.Vote = services.NewVoteService(log, r.Vote)
	out.Argument = services.NewArgumentService(log, r.Unit, r.ADU, r.Canonical, r.Relation)

	// With Temporal configured, each enqueued job also starts a workflow; the
	// DB worker keeps claiming too, and claims are exclusive either way.
	var dispatcher services.Dispatcher
	if clients.Temporal != nil {
		dispatcher = temporalx.NewDispatcher(log, clients.Temporal, cfg.temporalConfig())
	}
	out.Jobs = services.NewJobService(log, r.JobRun, r.Unit, dispatcher, services.JobConfig{
		MaxAttempts: cfg.JobMaxAttempts,
		MaxRequeues: cfg.JobMaxRequeues,
	})

	if index != nil {
		var embed search.Embedder
		var vectors search.VectorSearcher
		if clients.Analysis != nil {
			embed = clients.Analysis
			vectors = r.Embedding
		}
		out.Search = search.NewService(index, embed, vectors, cfg.SearchHybridAlpha, log)
	}
	var indexer services.ContentIndexer
	if out.Search != nil {
		indexer = out.Search
	}
	out.Content = services.NewContentService(log, out.Tx, r.Post, r.Reply, r.Unit, r.ADU, out.Jobs, indexer)

	feedOpts := feed.DefaultOptions()
	if cfg.FeedRisingWindow > 0 {
		feedOpts.RisingWindow = cfg.FeedRisingWindow
	}
	if cfg.FeedControversialMinVotes > 0 {
		feedOpts.ControversialMinVotes = cfg.FeedControversialMinVotes
	}
	out.Feed = feed.NewEngine(r.Post, feedOpts, log)

	counter := ratelimit.ActivityCounterFunc(func(ctx context.Context, ownerID uuid.UUID, since time.Time) (agent.Activity, error) {
		return out.Agent.AggregateActivity(dbctx.Context{Ctx: ctx}, ownerID, since)
	})
	aggregate := ratelimit.NewAggregateLimiter(counter, ratelimit.Ceilings{
		Posts:   cfg.OwnerMaxPosts,
		Replies: cfg.OwnerMaxReplies,
		Votes:   cfg.OwnerMaxVotes,
	}, cfg.AgentRateWindow, log)
	out.Governor = ratelimit.NewGovernor(aggregate, perAgentLimiter(cfg, clients), log)

	// Job handlers
	out.JobRegistry = jobruntime.NewRegistry()
	if clients.Analysis != nil {
		p := analyze_content.New(log, out.Tx, r.Unit, r.ADU, r.Canonical, r.Relation, r.Embedding, clients.Analysis, out.Graph, out.Notifier, analyze_content.Config{
			SimilarityThreshold: cfg.SimilarityThreshold,
			CanonicalTopK:       cfg.CanonicalTopK,
			ContextMaxADUs:      cfg.RelationContextMaxADUs,
		})
		if err := out.JobRegistry.Register(p); err != nil {
			return Services{}, errors.Wrap(err, "register analyze_content")
		}
	}

	out.JobWorker = worker.NewWorker(log, r.JobRun, out.JobRegistry, out.Notifier, worker.Config{
		Concurrency:      cfg.WorkerConcurrency,
		PollInterval:     cfg.WorkerPollInterval,
		StaleRunning:     cfg.WorkerStaleRunning,
		Retry:            jobruntime.RetryPolicy{Base: cfg.WorkerRetryBase, Max: cfg.WorkerRetryMax},
		AutoRequeueAfter: cfg.DeadLetterAutoRequeueAfter,
	})

	if clients.Temporal != nil {
		tw, err := temporalworker.NewRunner(log, clients.Temporal, cfg.temporalConfig(), r.JobRun, out.JobWorker, cfg.Temporal.WorkerConcurrency)
		if err != nil {
			return Services{}, errors.Wrap(err, "init temporal worker")
		}
		out.TemporalWorker = tw
	}

	return out, nil
}
