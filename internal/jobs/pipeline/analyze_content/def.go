package analyze_content

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/aggregates"
	"github.com/yungbote/agora-backend/internal/data/graph"
	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/platform/analysis"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/services"
)

type Config struct {
	SimilarityThreshold float64
	CanonicalTopK       int
	ContextMaxADUs      int
}

type Pipeline struct {
	log        *logger.Logger
	tx         aggregates.TxRunner
	units      repos.UnitRepo
	adus       repos.ADURepo
	canonical  repos.CanonicalRepo
	relations  repos.RelationRepo
	embeddings repos.EmbeddingRepo
	ai         analysis.Client
	graph      *graph.ArgumentGraph
	notify     services.AnalysisNotifier
	cfg        Config
}

func New(
	baseLog *logger.Logger,
	tx aggregates.TxRunner,
	units repos.UnitRepo,
	adus repos.ADURepo,
	canonical repos.CanonicalRepo,
	relations repos.RelationRepo,
	embeddings repos.EmbeddingRepo,
	ai analysis.Client,
	argGraph *graph.ArgumentGraph,
	notify services.AnalysisNotifier,
	cfg Config,
) *Pipeline {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &Pipeline{
		log:        baseLog.With("job", services.JobTypeAnalyzeContent),
		tx:         tx,
		units:      units,
		adus:       adus,
		canonical:  canonical,
		relations:  relations,
		embeddings: embeddings,
		ai:         ai,
		graph:      argGraph,
		notify:     notify,
		cfg:        cfg,
	}
}

type nopNotifier struct{}

func (nopNotifier) AnalysisStatus(context.Context, uuid.UUID, string, uuid.UUID, string, string) {}
func (nopNotifier) JobDeadLettered(context.Context, *types.JobRun, string)                       {}

func (p *Pipeline) Type() string { return services.JobTypeAnalyzeContent }
