package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/feed"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
)

// fakeTx runs fn inline. Writes are not rolled back; tests assert on the
// error path before any write happens.
type fakeTx struct{}

func (fakeTx) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.Context{Ctx: ctx})
}

type fakeUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*types.User
	// lockErr simulates a missing owner row.
	lockErr error
}

func newFakeUsers(us ...*types.User) *fakeUsers {
	f := &fakeUsers{byID: map[uuid.UUID]*types.User{}}
	for _, u := range us {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ dbctx.Context, users []*types.User) ([]*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range users {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		f.byID[u.ID] = u
	}
	return users, nil
}

func (f *fakeUsers) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.User
	for _, id := range ids {
		if u, ok := f.byID[id]; ok && !u.DeletedAt.Valid {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) GetByEmail(_ dbctx.Context, email string) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email != "" && strings.EqualFold(u.Email, email) && !u.DeletedAt.Valid {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) LockByID(_ dbctx.Context, id uuid.UUID) (*types.User, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeUsers) HandleTaken(_ dbctx.Context, handle string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Handle, handle) && !u.DeletedAt.Valid {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) Disable(_ dbctx.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.DisabledAt = &at
	}
	return nil
}

func (f *fakeUsers) SoftDeleteByIDs(_ dbctx.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			u.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		}
	}
	return nil
}

type fakeAgents struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*types.AgentIdentity
}

func newFakeAgents() *fakeAgents { return &fakeAgents{byID: map[uuid.UUID]*types.AgentIdentity{}} }

func (f *fakeAgents) Create(_ dbctx.Context, a *types.AgentIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	f.byID[a.ID] = a
	return nil
}

func (f *fakeAgents) live(id uuid.UUID) *types.AgentIdentity {
	if a, ok := f.byID[id]; ok && !a.DeletedAt.Valid {
		return a
	}
	return nil
}

func (f *fakeAgents) GetByID(_ dbctx.Context, id uuid.UUID) (*types.AgentIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live(id), nil
}

func (f *fakeAgents) GetByUserID(_ dbctx.Context, userID uuid.UUID) (*types.AgentIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, a := range f.byID {
		if a.UserID == userID {
			return f.live(id), nil
		}
	}
	return nil, nil
}

func (f *fakeAgents) ListByOwner(_ dbctx.Context, ownerID uuid.UUID) ([]*types.AgentIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AgentIdentity
	for id, a := range f.byID {
		if a.OwnerUserID == ownerID && f.live(id) != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAgents) CountActiveByOwner(dbc dbctx.Context, ownerID uuid.UUID) (int64, error) {
	out, _ := f.ListByOwner(dbc, ownerID)
	return int64(len(out)), nil
}

func (f *fakeAgents) HandleTaken(_ dbctx.Context, handle string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, a := range f.byID {
		if strings.EqualFold(a.Handle, handle) && f.live(id) != nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAgents) SoftDelete(_ dbctx.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.live(id)
	if a == nil {
		return false, nil
	}
	a.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return true, nil
}

func (f *fakeAgents) AggregateActivity(dbctx.Context, uuid.UUID, time.Time) (types.AgentActivity, error) {
	return types.AgentActivity{}, nil
}

type fakeAgentTokens struct {
	mu    sync.Mutex
	byJTI map[string]*types.AgentToken
	err   error
}

func newFakeAgentTokens() *fakeAgentTokens {
	return &fakeAgentTokens{byJTI: map[string]*types.AgentToken{}}
}

func (f *fakeAgentTokens) Create(_ dbctx.Context, t *types.AgentToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byJTI[t.JTI] = t
	return nil
}

func (f *fakeAgentTokens) GetByJTI(_ dbctx.Context, jti string) (*types.AgentToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.byJTI[jti], nil
}

func (f *fakeAgentTokens) RevokeAll(_ dbctx.Context, agentID uuid.UUID, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.byJTI {
		if t.AgentID == agentID && t.RevokedAt == nil {
			t.RevokedAt = &at
			n++
		}
	}
	return n, nil
}

type fakeUserTokens struct {
	byHash map[string]*types.UserToken
}

func (f *fakeUserTokens) Create(_ dbctx.Context, tokens []*types.UserToken) ([]*types.UserToken, error) {
	for _, t := range tokens {
		f.byHash[t.TokenHash] = t
	}
	return tokens, nil
}

func (f *fakeUserTokens) GetByHash(_ dbctx.Context, h string) (*types.UserToken, error) {
	return f.byHash[h], nil
}

func (f *fakeUserTokens) DeleteByHash(_ dbctx.Context, h string) error {
	delete(f.byHash, h)
	return nil
}

func (f *fakeUserTokens) DeleteByUserIDs(_ dbctx.Context, ids []uuid.UUID) error {
	for h, t := range f.byHash {
		for _, id := range ids {
			if t.UserID == id {
				delete(f.byHash, h)
			}
		}
	}
	return nil
}

func (f *fakeUserTokens) DeleteExpired(_ dbctx.Context, now time.Time) (int64, error) {
	var n int64
	for h, t := range f.byHash {
		if t.ExpiresAt.Before(now) {
			delete(f.byHash, h)
			n++
		}
	}
	return n, nil
}

type fakeLinks struct {
	byHash map[string]*types.MagicLinkToken
}

func (f *fakeLinks) Create(_ dbctx.Context, l *types.MagicLinkToken) error {
	f.byHash[l.TokenHash] = l
	return nil
}

func (f *fakeLinks) Consume(_ dbctx.Context, h string, now time.Time) (*types.MagicLinkToken, error) {
	l, ok := f.byHash[h]
	if !ok || l.UsedAt != nil || !l.ExpiresAt.After(now) {
		return nil, nil
	}
	l.UsedAt = &now
	return l, nil
}

type sentMail struct{ to, subject, body string }

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

type fakePosts struct {
	byID map[uuid.UUID]*types.Post
}

func newFakePosts() *fakePosts { return &fakePosts{byID: map[uuid.UUID]*types.Post{}} }

func (f *fakePosts) Create(_ dbctx.Context, p *types.Post) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	f.byID[p.ID] = p
	return nil
}

func (f *fakePosts) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Post, error) {
	p, ok := f.byID[id]
	if !ok || p.DeletedAt.Valid {
		return nil, nil
	}
	return p, nil
}

func (f *fakePosts) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Post, error) {
	var out []*types.Post
	for _, id := range ids {
		if p, _ := f.GetByID(dbc, id); p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePosts) SoftDelete(_ dbctx.Context, id uuid.UUID) (bool, error) {
	p, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	p.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return true, nil
}

func (f *fakePosts) IncrementReplyCount(_ dbctx.Context, id uuid.UUID, delta int) error {
	if p, ok := f.byID[id]; ok {
		p.ReplyCount += delta
	}
	return nil
}

func (f *fakePosts) ListAll(dbctx.Context, uuid.UUID, int) ([]*types.Post, error) { return nil, nil }

func (f *fakePosts) FeedPage(context.Context, feed.Plan) ([]feed.Entry, error) { return nil, nil }

type fakeReplies struct {
	byID map[uuid.UUID]*types.Reply
}

func newFakeReplies() *fakeReplies { return &fakeReplies{byID: map[uuid.UUID]*types.Reply{}} }

func (f *fakeReplies) Create(_ dbctx.Context, r *types.Reply) error {
	f.byID[r.ID] = r
	return nil
}

func (f *fakeReplies) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Reply, error) {
	r, ok := f.byID[id]
	if !ok || r.DeletedAt.Valid {
		return nil, nil
	}
	return r, nil
}

func (f *fakeReplies) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Reply, error) {
	var out []*types.Reply
	for _, id := range ids {
		if r, _ := f.GetByID(dbc, id); r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReplies) ListThread(_ dbctx.Context, postID uuid.UUID, rootPath string, _ int) ([]*types.Reply, error) {
	var out []*types.Reply
	for _, r := range f.byID {
		if r.PostID == postID && (rootPath == "" || r.Path == rootPath || strings.HasPrefix(r.Path, rootPath+".")) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReplies) SoftDelete(_ dbctx.Context, id uuid.UUID) (bool, error) {
	r, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	r.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return true, nil
}

func (f *fakeReplies) IncrementReplyCount(_ dbctx.Context, id uuid.UUID, delta int) error {
	if r, ok := f.byID[id]; ok {
		r.ReplyCount += delta
	}
	return nil
}

func (f *fakeReplies) ListAll(dbctx.Context, uuid.UUID, int) ([]*types.Reply, error) { return nil, nil }

type fakeJobs struct {
	enqueued []AnalyzePayload
	err      error
}

func (f *fakeJobs) EnqueueAnalysis(_ dbctx.Context, _ uuid.UUID, contentType string, id uuid.UUID, hash string) (*types.JobRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.enqueued = append(f.enqueued, AnalyzePayload{ContentType: contentType, ContentID: id, ContentHash: hash})
	return &types.JobRun{ID: uuid.New()}, nil
}

func (f *fakeJobs) Reanalyze(dbctx.Context, string, uuid.UUID) (*types.JobRun, bool, error) {
	return nil, false, nil
}
func (f *fakeJobs) ListDeadLetters(dbctx.Context, int) ([]*types.JobRun, error) { return nil, nil }
func (f *fakeJobs) RetryDeadLetter(dbctx.Context, uuid.UUID) error              { return nil }
func (f *fakeJobs) RequeueDeadLetters(dbctx.Context, time.Duration, int) (int64, error) {
	return 0, nil
}
func (f *fakeJobs) Get(dbctx.Context, uuid.UUID) (*types.JobRun, error) { return nil, nil }

type recordingIndexer struct {
	posts, replies int
	removed        []uuid.UUID
}

func (r *recordingIndexer) IndexPost(*types.Post)   { r.posts++ }
func (r *recordingIndexer) IndexReply(*types.Reply) { r.replies++ }
func (r *recordingIndexer) Remove(_ string, id uuid.UUID) {
	r.removed = append(r.removed, id)
}

type fakeADUs struct {
	byID map[uuid.UUID]*types.ADU
}

func (f *fakeADUs) GetByID(_ dbctx.Context, id uuid.UUID) (*types.ADU, error) {
	return f.byID[id], nil
}
func (f *fakeADUs) GetByIDs(dbctx.Context, []uuid.UUID) ([]*types.ADU, error) { return nil, nil }
func (f *fakeADUs) ListBySourceHash(dbctx.Context, string, uuid.UUID, string) ([]*types.ADU, error) {
	return nil, nil
}
func (f *fakeADUs) ListLive(dbctx.Context, string, uuid.UUID) ([]*types.ADU, error) { return nil, nil }
func (f *fakeADUs) InsertBatch(dbctx.Context, []*types.ADU) error                   { return nil }
func (f *fakeADUs) SupersedeOlder(dbctx.Context, string, uuid.UUID, string, time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeADUs) Revive(dbctx.Context, string, uuid.UUID, string) (int64, error) {
	return 0, nil
}
func (f *fakeADUs) SetParent(dbctx.Context, uuid.UUID, uuid.UUID) error    { return nil }
func (f *fakeADUs) SetEmbedding(dbctx.Context, uuid.UUID, []float32) error { return nil }

type fakeVotes struct {
	calls int
	err   error
}

func (f *fakeVotes) Cast(_ dbctx.Context, _ uuid.UUID, _ string, _ uuid.UUID, value int) (content.Tally, error) {
	f.calls++
	if f.err != nil {
		return content.Tally{}, f.err
	}
	return content.Tally{Score: value, VoteCount: 1}, nil
}

func (f *fakeVotes) Get(dbctx.Context, uuid.UUID, string, uuid.UUID) (int, error) { return 0, nil }
