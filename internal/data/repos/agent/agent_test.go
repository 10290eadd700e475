package agent

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/agora-backend/internal/data/repos/testutil"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
)

func TestAggregateActivitySpansLiveAgentsInWindow(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewAgentRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	owner := testutil.SeedUser(t, ctx, tx)
	first, _ := testutil.SeedAgent(t, ctx, tx, owner.ID)
	second, _ := testutil.SeedAgent(t, ctx, tx, owner.ID)
	retiredUser, retired := testutil.SeedAgent(t, ctx, tx, owner.ID)
	stranger := testutil.SeedUser(t, ctx, tx)
	strangerAgent, _ := testutil.SeedAgent(t, ctx, tx, stranger.ID)

	for i := 0; i < 60; i++ {
		testutil.SeedPost(t, ctx, tx, first.ID, "from first")
	}
	last := testutil.SeedPost(t, ctx, tx, second.ID, "from second")
	for i := 1; i < 41; i++ {
		last = testutil.SeedPost(t, ctx, tx, second.ID, "from second")
	}
	// deleting content does not refund quota
	if err := tx.Exec(`UPDATE post SET deleted_at = now() WHERE id = ?`, last.ID).Error; err != nil {
		t.Fatalf("soft-delete post: %v", err)
	}
	reply := testutil.SeedReply(t, ctx, tx, last, nil, first.ID, "reply")
	vote := &content.Vote{VoterID: second.ID, TargetType: content.TypeReply, TargetID: reply.ID, Value: 1}
	if err := tx.Create(vote).Error; err != nil {
		t.Fatalf("seed vote: %v", err)
	}

	// outside the window
	stale := testutil.SeedPost(t, ctx, tx, first.ID, "old")
	if err := tx.Exec(`UPDATE post SET created_at = ? WHERE id = ?`, time.Now().Add(-2*time.Hour), stale.ID).Error; err != nil {
		t.Fatalf("age post: %v", err)
	}
	// a deleted agent and another owner's agent
	for i := 0; i < 5; i++ {
		testutil.SeedPost(t, ctx, tx, retiredUser.ID, "from retired")
		testutil.SeedPost(t, ctx, tx, strangerAgent.ID, "from stranger")
	}
	if ok, err := repo.SoftDelete(dbc, retired.ID); err != nil || !ok {
		t.Fatalf("SoftDelete: ok=%v err=%v", ok, err)
	}

	got, err := repo.AggregateActivity(dbc, owner.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("AggregateActivity: %v", err)
	}
	if got.Posts != 101 || got.Replies != 1 || got.Votes != 1 {
		t.Fatalf("activity: want=101/1/1 got=%d/%d/%d", got.Posts, got.Replies, got.Votes)
	}
}
