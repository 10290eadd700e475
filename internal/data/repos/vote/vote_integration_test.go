package vote

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/agora-backend/internal/data/repos/testutil"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
)

func TestVoteTallyAcrossDistinctVoters(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewVoteRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	author := testutil.SeedUser(t, ctx, tx)
	p := testutil.SeedPost(t, ctx, tx, author.ID, "body")

	values := []int{1, 1, -1, 1}
	var last content.Tally
	for _, v := range values {
		voter := testutil.SeedUser(t, ctx, tx)
		tally, err := repo.Cast(dbc, voter.ID, content.TypePost, p.ID, v)
		if err != nil {
			t.Fatalf("Cast: %v", err)
		}
		last = tally
	}
	if last.Score != 2 || last.VoteCount != 4 {
		t.Fatalf("tally: want=2/4 got=%d/%d", last.Score, last.VoteCount)
	}
}

func TestReVoteDoesNotDoubleCount(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewVoteRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	author := testutil.SeedUser(t, ctx, tx)
	voter := testutil.SeedUser(t, ctx, tx)
	p := testutil.SeedPost(t, ctx, tx, author.ID, "body")

	for _, v := range []int{1, 1, -1} {
		if _, err := repo.Cast(dbc, voter.ID, content.TypePost, p.ID, v); err != nil {
			t.Fatalf("Cast: %v", err)
		}
	}
	got, err := repo.Get(dbc, voter.ID, content.TypePost, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != -1 {
		t.Fatalf("value: want=-1 got=%d", got)
	}
	tally, err := repo.Cast(dbc, voter.ID, content.TypePost, p.ID, 0)
	if err != nil {
		t.Fatalf("retract: %v", err)
	}
	if tally.Score != 0 || tally.VoteCount != 0 {
		t.Fatalf("tally after retract: want=0/0 got=%d/%d", tally.Score, tally.VoteCount)
	}
}

// Each Cast runs in its own transaction, so the target row lock is the only
// thing keeping the recomputed tally from losing a concurrent vote.
func TestConcurrentVotesAllLand(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	repo := NewVoteRepo(gdb, testutil.Logger(t))

	author := testutil.SeedUser(t, ctx, gdb)
	p := testutil.SeedPost(t, ctx, gdb, author.ID, "contended")
	userIDs := []uuid.UUID{author.ID}

	const voters = 24
	wantScore := 0
	values := make([]int, voters)
	voterIDs := make([]uuid.UUID, voters)
	for i := range values {
		values[i] = 1
		if i%3 == 0 {
			values[i] = -1
		}
		wantScore += values[i]
		voterIDs[i] = testutil.SeedUser(t, ctx, gdb).ID
	}
	userIDs = append(userIDs, voterIDs...)
	t.Cleanup(func() {
		gdb.Exec(`DELETE FROM vote WHERE target_id = ?`, p.ID)
		gdb.Unscoped().Where("id = ?", p.ID).Delete(&types.Post{})
		gdb.Unscoped().Where("id IN ?", userIDs).Delete(&types.User{})
	})

	var g errgroup.Group
	for i := range voterIDs {
		voter, value := voterIDs[i], values[i]
		g.Go(func() error {
			_, err := repo.Cast(dbctx.Context{Ctx: ctx}, voter, content.TypePost, p.ID, value)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Cast: %v", err)
	}

	var got types.Post
	if err := gdb.Where("id = ?", p.ID).First(&got).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if got.VoteCount != voters || got.Score != wantScore {
		t.Fatalf("cached tally: want=%d/%d got=%d/%d", wantScore, voters, got.Score, got.VoteCount)
	}
}
