package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/argument"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/platform/neo4jdb"
)

// ArgumentGraph mirrors ADUs, canonical claims and support/attack edges into
// Neo4j for traversal queries. Postgres stays the source of truth; a nil
// client turns every call into a no-op.
type ArgumentGraph struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewArgumentGraph(client *neo4jdb.Client, baseLog *logger.Logger) *ArgumentGraph {
	return &ArgumentGraph{client: client, log: baseLog.With("component", "ArgumentGraph")}
}

func (g *ArgumentGraph) Enabled() bool {
	return g != nil && g.client != nil && g.client.Driver != nil
}

func aduNode(a *types.ADU, syncedAt string) map[string]any {
	parent := ""
	if a.ParentADUID != nil {
		parent = a.ParentADUID.String()
	}
	return map[string]any{
		"id":          a.ID.String(),
		"source_type": a.SourceType,
		"source_id":   a.SourceID.String(),
		"adu_type":    a.ADUType,
		"text":        a.Text,
		"position":    int64(a.Position),
		"confidence":  a.Confidence,
		"parent_id":   parent,
		"synced_at":   syncedAt,
	}
}

// EnsureSchema creates the uniqueness constraints. Failures are logged since
// restricted users may not be allowed to run DDL.
func (g *ArgumentGraph) EnsureSchema(ctx context.Context) {
	if !g.Enabled() {
		return
	}
	session := g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.client.Database,
	})
	defer session.Close(ctx)
	for _, stmt := range []string{
		`CREATE CONSTRAINT adu_id_unique IF NOT EXISTS FOR (a:ADU) REQUIRE a.id IS UNIQUE`,
		`CREATE CONSTRAINT claim_id_unique IF NOT EXISTS FOR (c:Claim) REQUIRE c.id IS UNIQUE`,
		`CREATE INDEX adu_source_idx IF NOT EXISTS FOR (a:ADU) ON (a.source_type, a.source_id)`,
	} {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			g.log.Warn("neo4j schema init failed (continuing)", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

// MirrorUnit upserts the ADUs of one content unit with their parent links,
// their canonical claim memberships and the relations touching them.
func (g *ArgumentGraph) MirrorUnit(ctx context.Context, adus []*types.ADU, canonical map[uuid.UUID]uuid.UUID, rels []*types.ArgumentRelation) error {
	if !g.Enabled() || len(adus) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodes := make([]map[string]any, 0, len(adus))
	parents := make([]map[string]any, 0, len(adus))
	members := make([]map[string]any, 0, len(adus))
	for _, a := range adus {
		if a == nil || a.ID == uuid.Nil {
			continue
		}
		nodes = append(nodes, aduNode(a, now))
		if a.ParentADUID != nil {
			parents = append(parents, map[string]any{"child_id": a.ID.String(), "parent_id": a.ParentADUID.String()})
		}
		if cid, ok := canonical[a.ID]; ok {
			members = append(members, map[string]any{"adu_id": a.ID.String(), "claim_id": cid.String(), "synced_at": now})
		}
	}

	var supports, attacks []map[string]any
	for _, r := range rels {
		if r == nil || r.SourceADUID == r.TargetADUID {
			continue
		}
		rec := map[string]any{
			"id":         r.ID.String(),
			"source_id":  r.SourceADUID.String(),
			"target_id":  r.TargetADUID.String(),
			"confidence": r.Confidence,
			"synced_at":  now,
		}
		switch r.RelationType {
		case argument.RelationSupport:
			supports = append(supports, rec)
		case argument.RelationAttack:
			attacks = append(attacks, rec)
		}
	}

	session := g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		run := func(cypher string, params map[string]any) error {
			res, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return err
			}
			_, err = res.Consume(ctx)
			return err
		}
		if err := run(`
UNWIND $nodes AS n
MERGE (a:ADU {id: n.id})
SET a += n
`, map[string]any{"nodes": nodes}); err != nil {
			return nil, err
		}
		if len(parents) > 0 {
			if err := run(`
UNWIND $rels AS r
MATCH (c:ADU {id: r.child_id})
MATCH (p:ADU {id: r.parent_id})
MERGE (c)-[:CHILD_OF]->(p)
`, map[string]any{"rels": parents}); err != nil {
				return nil, err
			}
		}
		if len(members) > 0 {
			if err := run(`
UNWIND $rels AS r
MATCH (a:ADU {id: r.adu_id})
MERGE (c:Claim {id: r.claim_id})
MERGE (a)-[e:INSTANCE_OF]->(c)
SET e.synced_at = r.synced_at
`, map[string]any{"rels": members}); err != nil {
				return nil, err
			}
		}
		// Context ADUs of other units may not be mirrored yet, so endpoints
		// are MERGEd by id rather than MATCHed.
		if len(supports) > 0 {
			if err := run(`
UNWIND $rels AS r
MERGE (s:ADU {id: r.source_id})
MERGE (t:ADU {id: r.target_id})
MERGE (s)-[e:SUPPORTS]->(t)
SET e.id = r.id, e.confidence = r.confidence, e.synced_at = r.synced_at
`, map[string]any{"rels": supports}); err != nil {
				return nil, err
			}
		}
		if len(attacks) > 0 {
			if err := run(`
UNWIND $rels AS r
MERGE (s:ADU {id: r.source_id})
MERGE (t:ADU {id: r.target_id})
MERGE (s)-[e:ATTACKS]->(t)
SET e.id = r.id, e.confidence = r.confidence, e.synced_at = r.synced_at
`, map[string]any{"rels": attacks}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}
