package feed

import (
	"context"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// memStore evaluates a Plan in Go the same way the SQL store does.
type memStore struct {
	posts []*content.Post
	plans []Plan
}

func (m *memStore) FeedPage(_ context.Context, plan Plan) ([]Entry, error) {
	m.plans = append(m.plans, plan)
	var out []Entry
	for _, p := range m.posts {
		rank := Rank(plan.Sort, p.Score, p.VoteCount, p.CreatedAt, plan.AsOf)
		if plan.Admits(p, rank) {
			out = append(out, Entry{Post: p, Rank: rank})
		}
	}
	sort.Slice(out, func(i, j int) bool { return Precedes(plan.Sort, out[i], out[j]) })
	if len(out) > plan.Limit {
		out = out[:plan.Limit]
	}
	return out, nil
}

func newTestEngine(store Store, now time.Time) *Engine {
	e := NewEngine(store, DefaultOptions(), logger.Nop())
	e.now = func() time.Time { return now }
	return e
}

func post(score, votes int, createdAt time.Time) *content.Post {
	return &content.Post{ID: uuid.New(), Score: score, VoteCount: votes, CreatedAt: createdAt}
}

func collect(t *testing.T, e *Engine, s Sort, limit int) ([]*content.Post, []*Page) {
	t.Helper()
	var all []*content.Post
	var pages []*Page
	cursor := ""
	for i := 0; i < 20; i++ {
		page, err := e.GetPage(context.Background(), Query{Sort: s, Limit: limit, Cursor: cursor})
		require.NoError(t, err)
		pages = append(pages, page)
		all = append(all, page.Items...)
		if !page.HasMore {
			return all, pages
		}
		cursor = page.NextCursor
	}
	t.Fatalf("pagination did not terminate")
	return nil, nil
}

func TestTopPaginationExactOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	var want []uuid.UUID
	for i, score := range []int{3, 5, 1, 4, 2} {
		store.posts = append(store.posts, post(score, score, now.Add(-time.Duration(i)*time.Minute)))
	}
	byScore := append([]*content.Post(nil), store.posts...)
	sort.Slice(byScore, func(i, j int) bool { return byScore[i].Score > byScore[j].Score })
	for _, p := range byScore {
		want = append(want, p.ID)
	}

	items, pages := collect(t, newTestEngine(store, now), SortTop, 2)

	require.Len(t, pages, 3)
	assert.True(t, pages[0].HasMore)
	assert.True(t, pages[1].HasMore)
	assert.False(t, pages[2].HasMore)
	assert.Empty(t, pages[2].NextCursor)
	var got []uuid.UUID
	var scores []int
	for _, p := range items {
		got = append(got, p.ID)
		scores = append(scores, p.Score)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, []int{5, 4, 3, 2, 1}, scores)
}

func TestFetchesLimitPlusOne(t *testing.T) {
	now := time.Now().UTC()
	store := &memStore{posts: []*content.Post{post(1, 1, now.Add(-time.Minute))}}
	page, err := newTestEngine(store, now).GetPage(context.Background(), Query{Sort: SortNew, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, store.plans[0].Limit)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
}

func TestNewPaginationStableUnderConcurrentInserts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	for i := 0; i < 5; i++ {
		store.posts = append(store.posts, post(0, 0, now.Add(-time.Duration(i+1)*time.Minute)))
	}
	e := newTestEngine(store, now)

	first, err := e.GetPage(context.Background(), Query{Sort: SortNew, Limit: 2})
	require.NoError(t, err)
	// a new post lands between page fetches
	store.posts = append(store.posts, post(0, 0, now.Add(time.Second)))

	seen := map[uuid.UUID]bool{}
	for _, p := range first.Items {
		seen[p.ID] = true
	}
	cursor := first.NextCursor
	for cursor != "" {
		page, err := e.GetPage(context.Background(), Query{Sort: SortNew, Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, p := range page.Items {
			require.False(t, seen[p.ID], "duplicate item %s", p.ID)
			seen[p.ID] = true
		}
		cursor = page.NextCursor
	}
	assert.Len(t, seen, 5)
}

func TestRisingExcludesOlderThanWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := post(900, 1000, now.Add(-25*time.Hour))
	fresh := post(2, 3, now.Add(-time.Hour))
	store := &memStore{posts: []*content.Post{old, fresh}}

	page, err := newTestEngine(store, now).GetPage(context.Background(), Query{Sort: SortRising})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, fresh.ID, page.Items[0].ID)
}

func TestControversialExcludesBelowMinVotes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	balancedButQuiet := post(0, 4, now.Add(-time.Hour))
	contested := post(1, 9, now.Add(-2*time.Hour))
	store := &memStore{posts: []*content.Post{balancedButQuiet, contested}}

	page, err := newTestEngine(store, now).GetPage(context.Background(), Query{Sort: SortControversial})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, contested.ID, page.Items[0].ID)
}

func TestHotCursorFreezesReferenceTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	for i := 0; i < 6; i++ {
		store.posts = append(store.posts, post(10-i, 10, start.Add(-time.Duration(i)*time.Hour)))
	}
	e := newTestEngine(store, start)
	first, err := e.GetPage(context.Background(), Query{Sort: SortHot, Limit: 3})
	require.NoError(t, err)
	require.True(t, first.HasMore)

	e.now = func() time.Time { return start.Add(6 * time.Hour) }
	late := post(50, 50, start.Add(time.Hour))
	store.posts = append(store.posts, late)

	second, err := e.GetPage(context.Background(), Query{Sort: SortHot, Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	assert.True(t, store.plans[1].AsOf.Equal(start))
	for _, p := range second.Items {
		assert.NotEqual(t, late.ID, p.ID)
		for _, q := range first.Items {
			assert.NotEqual(t, q.ID, p.ID)
		}
	}
	assert.Len(t, second.Items, 3)
}

func TestCursorBoundToSort(t *testing.T) {
	now := time.Now().UTC()
	store := &memStore{}
	for i := 0; i < 3; i++ {
		store.posts = append(store.posts, post(i, i, now.Add(-time.Duration(i+1)*time.Minute)))
	}
	e := newTestEngine(store, now)
	page, err := e.GetPage(context.Background(), Query{Sort: SortNew, Limit: 1})
	require.NoError(t, err)

	_, err = e.GetPage(context.Background(), Query{Sort: SortTop, Limit: 1, Cursor: page.NextCursor})
	assert.True(t, domain.IsCode(err, domain.CodeValidation))

	_, err = e.GetPage(context.Background(), Query{Sort: SortNew, Cursor: "%%%"})
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
}

func TestLimitClamp(t *testing.T) {
	e := newTestEngine(&memStore{}, time.Now())
	_, limit, err := e.PlanFor(Query{Sort: SortNew, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, limit)
	_, limit, _ = e.PlanFor(Query{Sort: SortNew})
	assert.Equal(t, 25, limit)
}

func TestRankFormulas(t *testing.T) {
	asOf := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created := asOf.Add(-2 * time.Hour)
	assert.InDelta(t, 10/math.Pow(4, 1.8), HotRank(10, created, asOf), 1e-12)
	assert.InDelta(t, 6/math.Pow(4, 1.2), RisingRank(6, created, asOf), 1e-12)
	assert.InDelta(t, 3.0/2.0, ControversialRank(3, -1), 1e-12)
	// future timestamps clamp age to zero
	assert.InDelta(t, 4/math.Pow(2, 1.2), RisingRank(4, asOf.Add(time.Hour), asOf), 1e-12)
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("")
	require.NoError(t, err)
	assert.Equal(t, SortHot, s)
	s, err = ParseSort("TOP")
	require.NoError(t, err)
	assert.Equal(t, SortTop, s)
	_, err = ParseSort("best")
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
}
