package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/feed"
	"github.com/yungbote/agora-backend/internal/pkg/ctxutil"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

type voteCall struct {
	voter      uuid.UUID
	targetType string
	target     uuid.UUID
	value      int
}

type fakeVoteService struct {
	calls []voteCall
	err   error
}

func (f *fakeVoteService) Cast(_ dbctx.Context, voterID uuid.UUID, targetType string, targetID uuid.UUID, value int) (*services.VoteResult, error) {
	f.calls = append(f.calls, voteCall{voterID, targetType, targetID, value})
	if f.err != nil {
		return nil, f.err
	}
	return &services.VoteResult{TargetType: targetType, TargetID: targetID, Value: value}, nil
}

type fakePager struct {
	last feed.Query
	page *feed.Page
	err  error
}

func (f *fakePager) GetPage(_ context.Context, q feed.Query) (*feed.Page, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

// asUser injects a principal the way RequireAuth would.
func asUser(uid uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: uid, PrincipalType: ctxutil.PrincipalHuman})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Scope   string `json:"scope"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v body=%s", err, w.Body.String())
	}
	return env
}

func voteRouter(uid uuid.UUID, svc services.VoteService) *gin.Engine {
	h := NewVoteHandler(svc)
	r := gin.New()
	g := r.Group("/api", asUser(uid))
	g.PUT("/votes/:target_type/:target_id", h.Cast)
	g.DELETE("/votes/:target_type/:target_id", h.Retract)
	return r
}

func TestVoteRejectsValueOutsideUnitRange(t *testing.T) {
	svc := &fakeVoteService{}
	r := voteRouter(uuid.New(), svc)

	for _, body := range []string{`{"value":2}`, `{"value":0}`, `{}`} {
		w := do(r, http.MethodPut, "/api/votes/post/"+uuid.NewString(), body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: want=400 got=%d", body, w.Code)
		}
		if env := decodeError(t, w); env.Error.Code != string(types.CodeValidation) {
			t.Fatalf("code: want=validation got=%q", env.Error.Code)
		}
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service calls: want=0 got=%d", len(svc.calls))
	}
}

func TestVoteCastAndRetract(t *testing.T) {
	uid := uuid.New()
	target := uuid.New()
	svc := &fakeVoteService{}
	r := voteRouter(uid, svc)

	if w := do(r, http.MethodPut, "/api/votes/reply/"+target.String(), `{"value":-1}`); w.Code != http.StatusOK {
		t.Fatalf("cast: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodDelete, "/api/votes/reply/"+target.String(), ""); w.Code != http.StatusOK {
		t.Fatalf("retract: want=200 got=%d", w.Code)
	}
	want := []voteCall{{uid, "reply", target, -1}, {uid, "reply", target, 0}}
	if len(svc.calls) != len(want) {
		t.Fatalf("calls: want=%d got=%d", len(want), len(svc.calls))
	}
	for i := range want {
		if svc.calls[i] != want[i] {
			t.Fatalf("call %d: want=%+v got=%+v", i, want[i], svc.calls[i])
		}
	}
}

func TestVoteBadTargetID(t *testing.T) {
	svc := &fakeVoteService{}
	w := do(voteRouter(uuid.New(), svc), http.MethodPut, "/api/votes/post/nope", `{"value":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want=400 got=%d", w.Code)
	}
}

func TestRateLimitedErrorCarriesScopeAndRetryAfter(t *testing.T) {
	svc := &fakeVoteService{err: types.RateLimitedFor("vote", types.ScopeOwnerAggregate, "owner ceiling reached", 90*time.Second)}
	w := do(voteRouter(uuid.New(), svc), http.MethodPut, "/api/votes/post/"+uuid.NewString(), `{"value":1}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status: want=429 got=%d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "90" {
		t.Fatalf("Retry-After: want=90 got=%q", got)
	}
	env := decodeError(t, w)
	if env.Error.Code != string(types.CodeRateLimited) || env.Error.Scope != types.ScopeOwnerAggregate {
		t.Fatalf("envelope: want=rate_limited/%s got=%s/%s", types.ScopeOwnerAggregate, env.Error.Code, env.Error.Scope)
	}
}

func TestFeedPassesQueryThrough(t *testing.T) {
	pager := &fakePager{page: &feed.Page{NextCursor: "abc", HasMore: true}}
	r := gin.New()
	r.GET("/api/feed", NewFeedHandler(pager).GetFeed)

	w := do(r, http.MethodGet, "/api/feed?sort=top&limit=5&cursor=xyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("want=200 got=%d", w.Code)
	}
	if pager.last.Sort != feed.SortTop || pager.last.Limit != 5 || pager.last.Cursor != "xyz" {
		t.Fatalf("query: got=%+v", pager.last)
	}
	var body struct {
		NextCursor string `json:"next_cursor"`
		HasMore    bool   `json:"has_more"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.NextCursor != "abc" || !body.HasMore {
		t.Fatalf("page: got=%+v", body)
	}
}

func TestFeedRejectsUnknownSortAndBadLimit(t *testing.T) {
	pager := &fakePager{page: &feed.Page{}}
	r := gin.New()
	r.GET("/api/feed", NewFeedHandler(pager).GetFeed)

	if w := do(r, http.MethodGet, "/api/feed?sort=best", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("sort: want=400 got=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/feed?limit=ten", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("limit: want=400 got=%d", w.Code)
	}
}

func TestWriteWithoutPrincipalIsUnauthenticated(t *testing.T) {
	r := gin.New()
	r.PUT("/api/votes/:target_type/:target_id", NewVoteHandler(&fakeVoteService{}).Cast)
	w := do(r, http.MethodPut, "/api/votes/post/"+uuid.NewString(), `{"value":1}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want=401 got=%d", w.Code)
	}
}

func TestMalformedJSONIsValidation(t *testing.T) {
	w := do(voteRouter(uuid.New(), &fakeVoteService{}), http.MethodPut, "/api/votes/post/"+uuid.NewString(), `{"value":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want=400 got=%d", w.Code)
	}
}
