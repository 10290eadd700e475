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

func TestClaimCountsFollowADULiveness(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	adus := NewADURepo(tx, testutil.Logger(t))
	claims := NewCanonicalRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	author := testutil.SeedUser(t, ctx, tx)
	edited := testutil.SeedPost(t, ctx, tx, author.ID, "x")
	other := testutil.SeedPost(t, ctx, tx, author.ID, "y")

	if err := adus.InsertBatch(dbc, batch(edited.ID, "old")); err != nil {
		t.Fatalf("InsertBatch edited: %v", err)
	}
	if err := adus.InsertBatch(dbc, batch(other.ID, other.ContentHash)); err != nil {
		t.Fatalf("InsertBatch other: %v", err)
	}
	oldBatch, _ := adus.ListBySourceHash(dbc, content.TypePost, edited.ID, "old")
	otherBatch, _ := adus.ListBySourceHash(dbc, content.TypePost, other.ID, other.ContentHash)
	if len(oldBatch) == 0 || len(otherBatch) == 0 {
		t.Fatalf("seed batches: old=%d other=%d", len(oldBatch), len(otherBatch))
	}

	claim := &types.CanonicalClaim{
		ID:                  uuid.New(),
		RepresentativeText:  "a",
		ClaimType:           argument.TypeMajorClaim,
		RepresentativeADUID: oldBatch[0].ID,
		ADUCount:            1,
		DiscussionCount:     1,
		AvgSimilarity:       1,
	}
	vec := make([]float32, testutil.Dims.Claim)
	vec[0] = 1
	if err := claims.Create(dbc, claim, vec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, a := range []*types.ADU{oldBatch[0], otherBatch[0]} {
		if _, err := claims.Link(dbc, &types.CanonicalMapping{ADUID: a.ID, CanonicalClaimID: claim.ID, Similarity: 1}); err != nil {
			t.Fatalf("Link: %v", err)
		}
	}

	assertCounts := func(step string, wantADUs, wantDiscussions int) {
		t.Helper()
		got, err := claims.GetByID(dbc, claim.ID)
		if err != nil || got == nil {
			t.Fatalf("%s: GetByID: %v", step, err)
		}
		if got.ADUCount != wantADUs || got.DiscussionCount != wantDiscussions {
			t.Fatalf("%s: want=%d/%d got=%d/%d", step, wantADUs, wantDiscussions, got.ADUCount, got.DiscussionCount)
		}
	}

	if err := claims.RecomputeCounts(dbc, claim.ID); err != nil {
		t.Fatalf("RecomputeCounts: %v", err)
	}
	assertCounts("both live", 2, 2)

	if _, err := adus.SupersedeOlder(dbc, content.TypePost, edited.ID, "new", time.Now().UTC()); err != nil {
		t.Fatalf("SupersedeOlder: %v", err)
	}
	if err := claims.RecomputeForSource(dbc, content.TypePost, edited.ID); err != nil {
		t.Fatalf("RecomputeForSource: %v", err)
	}
	assertCounts("after supersede", 1, 1)

	n, err := adus.Revive(dbc, content.TypePost, edited.ID, "old")
	if err != nil {
		t.Fatalf("Revive: %v", err)
	}
	if n != int64(len(oldBatch)) {
		t.Fatalf("revived: want=%d got=%d", len(oldBatch), n)
	}
	if err := claims.RecomputeForSource(dbc, content.TypePost, edited.ID); err != nil {
		t.Fatalf("RecomputeForSource: %v", err)
	}
	assertCounts("after revive", 2, 2)
}
