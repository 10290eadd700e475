package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/aggregates"
	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type ADUView struct {
	*types.ADU
	CanonicalClaimID *uuid.UUID `json:"canonical_claim_id,omitempty"`
}

type ArgumentMap struct {
	ContentType string                    `json:"content_type"`
	ContentID   uuid.UUID                 `json:"content_id"`
	ADUs        []ADUView                 `json:"adus"`
	Relations   []*types.ArgumentRelation `json:"relations"`
}

type AnalysisView struct {
	ContentType    string    `json:"content_type"`
	ContentID      uuid.UUID `json:"content_id"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	ContentHash    string    `json:"content_hash"`
	AnalyzedHash   string    `json:"analyzed_hash,omitempty"`
	UpToDate       bool      `json:"up_to_date"`
	ADUCount       int       `json:"adu_count"`
	RelationCount  int       `json:"relation_count"`
	CanonicalCount int       `json:"canonical_count"`
}

type ClaimView struct {
	Claim *types.CanonicalClaim `json:"claim"`
	ADUs  []*types.ADU          `json:"adus"`
}

// ArgumentService serves the analysis results. Readers see whatever the
// pipeline has committed; a unit still pending simply has no ADUs yet.
type ArgumentService interface {
	Map(dbc dbctx.Context, contentType string, id uuid.UUID) (*ArgumentMap, error)
	Analysis(dbc dbctx.Context, contentType string, id uuid.UUID) (*AnalysisView, error)
	Claim(dbc dbctx.Context, id uuid.UUID, limit int) (*ClaimView, error)
}

type argumentService struct {
	log       *logger.Logger
	units     repos.UnitRepo
	adus      repos.ADURepo
	canonical repos.CanonicalRepo
	relations repos.RelationRepo
}

func NewArgumentService(baseLog *logger.Logger, units repos.UnitRepo, adus repos.ADURepo, canonical repos.CanonicalRepo, relations repos.RelationRepo) ArgumentService {
	return &argumentService{
		log:       baseLog.With("service", "ArgumentService"),
		units:     units,
		adus:      adus,
		canonical: canonical,
		relations: relations,
	}
}

func (s *argumentService) unit(dbc dbctx.Context, op, contentType string, id uuid.UUID) (*types.ContentUnit, error) {
	if !content.ValidType(contentType) {
		return nil, types.Validation(op, "type", "type must be post or reply")
	}
	u, err := s.units.Get(dbc, contentType, id)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if u == nil || u.Deleted {
		return nil, types.NotFound(op, contentType)
	}
	return u, nil
}

func (s *argumentService) Map(dbc dbctx.Context, contentType string, id uuid.UUID) (*ArgumentMap, error) {
	const op = "arguments.map"
	if _, err := s.unit(dbc, op, contentType, id); err != nil {
		return nil, err
	}
	adus, err := s.adus.ListLive(dbc, contentType, id)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	ids := make([]uuid.UUID, 0, len(adus))
	for _, a := range adus {
		ids = append(ids, a.ID)
	}
	mapped, err := s.canonical.MappedADUIDs(dbc, ids)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	rels, err := s.relations.ListTouching(dbc, ids)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	out := &ArgumentMap{ContentType: contentType, ContentID: id, ADUs: make([]ADUView, 0, len(adus)), Relations: rels}
	for _, a := range adus {
		v := ADUView{ADU: a}
		if cid, ok := mapped[a.ID]; ok {
			c := cid
			v.CanonicalClaimID = &c
		}
		out.ADUs = append(out.ADUs, v)
	}
	if out.Relations == nil {
		out.Relations = []*types.ArgumentRelation{}
	}
	return out, nil
}

func (s *argumentService) Analysis(dbc dbctx.Context, contentType string, id uuid.UUID) (*AnalysisView, error) {
	const op = "arguments.analysis"
	u, err := s.unit(dbc, op, contentType, id)
	if err != nil {
		return nil, err
	}
	m, err := s.Map(dbc, contentType, id)
	if err != nil {
		return nil, err
	}
	canon := 0
	for _, a := range m.ADUs {
		if a.CanonicalClaimID != nil {
			canon++
		}
	}
	return &AnalysisView{
		ContentType:    contentType,
		ContentID:      id,
		Status:         u.AnalysisStatus,
		Error:          analysisErrorOf(u),
		ContentHash:    u.ContentHash,
		AnalyzedHash:   u.AnalyzedHash,
		UpToDate:       !u.NeedsAnalysis(),
		ADUCount:       len(m.ADUs),
		RelationCount:  len(m.Relations),
		CanonicalCount: canon,
	}, nil
}

func analysisErrorOf(u *types.ContentUnit) string {
	if u.AnalysisStatus != content.AnalysisFailed {
		return ""
	}
	return u.AnalysisError
}

func (s *argumentService) Claim(dbc dbctx.Context, id uuid.UUID, limit int) (*ClaimView, error) {
	const op = "arguments.claim"
	c, err := s.canonical.GetByID(dbc, id)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if c == nil {
		return nil, types.NotFound(op, "claim")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	adus, err := s.canonical.ListMappedADUs(dbc, id, limit)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return &ClaimView{Claim: c, ADUs: adus}, nil
}
