package argument

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/repos/testutil"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/argument"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
)

func batch(sourceID uuid.UUID, hash string) []*types.ADU {
	return []*types.ADU{
		{SourceType: content.TypePost, SourceID: sourceID, SourceHash: hash, Position: 0, ADUType: argument.TypeMajorClaim, Text: "a", SpanStart: 0, SpanEnd: 1, Confidence: 0.9},
		{SourceType: content.TypePost, SourceID: sourceID, SourceHash: hash, Position: 1, ADUType: argument.TypeEvidence, Text: "b", SpanStart: 2, SpanEnd: 3, Confidence: 0.8},
	}
}

func TestInsertBatchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewADURepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	author := testutil.SeedUser(t, ctx, tx)
	p := testutil.SeedPost(t, ctx, tx, author.ID, "a. b.")

	for i := 0; i < 2; i++ {
		if err := repo.InsertBatch(dbc, batch(p.ID, p.ContentHash)); err != nil {
			t.Fatalf("InsertBatch #%d: %v", i, err)
		}
	}
	got, err := repo.ListBySourceHash(dbc, content.TypePost, p.ID, p.ContentHash)
	if err != nil {
		t.Fatalf("ListBySourceHash: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("adus: want=2 got=%d", len(got))
	}
	if got[0].Position != 0 || got[1].Position != 1 {
		t.Fatalf("order: want=[0 1] got=[%d %d]", got[0].Position, got[1].Position)
	}
}

func TestSupersedeOlderKeepsCurrentHash(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewADURepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	author := testutil.SeedUser(t, ctx, tx)
	p := testutil.SeedPost(t, ctx, tx, author.ID, "x")

	if err := repo.InsertBatch(dbc, batch(p.ID, "old")); err != nil {
		t.Fatalf("InsertBatch old: %v", err)
	}
	if err := repo.InsertBatch(dbc, batch(p.ID, "new")); err != nil {
		t.Fatalf("InsertBatch new: %v", err)
	}
	n, err := repo.SupersedeOlder(dbc, content.TypePost, p.ID, "new", time.Now().UTC())
	if err != nil {
		t.Fatalf("SupersedeOlder: %v", err)
	}
	if n != 2 {
		t.Fatalf("superseded: want=2 got=%d", n)
	}
	live, err := repo.ListLive(dbc, content.TypePost, p.ID)
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	for _, a := range live {
		if a.SourceHash != "new" {
			t.Fatalf("live adu hash: want=new got=%s", a.SourceHash)
		}
	}
}
