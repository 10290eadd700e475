package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type contentFixture struct {
	posts   *fakePosts
	replies *fakeReplies
	adus    *fakeADUs
	jobs    *fakeJobs
	index   *recordingIndexer
	svc     ContentService
}

func newContentFixture() *contentFixture {
	f := &contentFixture{
		posts:   newFakePosts(),
		replies: newFakeReplies(),
		adus:    &fakeADUs{byID: map[uuid.UUID]*types.ADU{}},
		jobs:    &fakeJobs{},
		index:   &recordingIndexer{},
	}
	f.svc = NewContentService(logger.Nop(), fakeTx{}, f.posts, f.replies, nil, f.adus, f.jobs, f.index)
	return f
}

func TestCreatePostEnqueuesAnalysis(t *testing.T) {
	f := newContentFixture()
	author := uuid.New()
	p, err := f.svc.CreatePost(bg(), author, CreatePostInput{Title: " Hello ", Body: "Cats are better than dogs."})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Title != "Hello" || p.AnalysisStatus != content.AnalysisPending {
		t.Fatalf("post: got=%+v", p)
	}
	if p.ContentHash != content.Hash(p.Body) {
		t.Fatalf("hash: want=%s got=%s", content.Hash(p.Body), p.ContentHash)
	}
	if len(f.jobs.enqueued) != 1 || f.jobs.enqueued[0].ContentID != p.ID || f.jobs.enqueued[0].ContentType != content.TypePost {
		t.Fatalf("enqueued: got=%+v", f.jobs.enqueued)
	}
	if f.index.posts != 1 {
		t.Fatalf("indexed posts: want=1 got=%d", f.index.posts)
	}
}

func TestCreatePostSurvivesEnqueueFailure(t *testing.T) {
	f := newContentFixture()
	f.jobs.err = errors.New("queue down")
	p, err := f.svc.CreatePost(bg(), uuid.New(), CreatePostInput{Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("create: want=nil got=%v", err)
	}
	if _, ok := f.posts.byID[p.ID]; !ok {
		t.Fatalf("post not persisted")
	}
}

func TestCreatePostValidation(t *testing.T) {
	f := newContentFixture()
	missing := uuid.New()
	cases := []CreatePostInput{
		{Title: "", Body: "b"},
		{Title: strings.Repeat("t", content.MaxTitleRunes+1), Body: "b"},
		{Title: "t", Body: "   "},
		{Title: "t", Body: strings.Repeat("é", content.MaxBodyRunes+1)},
		{Title: "t", Body: "b", QuotedPostID: &missing},
	}
	for i, in := range cases {
		if _, err := f.svc.CreatePost(bg(), uuid.New(), in); !types.IsCode(err, types.CodeValidation) {
			t.Fatalf("case %d: want=validation got=%v", i, err)
		}
	}
	if len(f.posts.byID) != 0 || len(f.jobs.enqueued) != 0 {
		t.Fatalf("invalid input wrote state")
	}
	// exactly at the limit is fine
	if _, err := f.svc.CreatePost(bg(), uuid.New(), CreatePostInput{Title: "t", Body: strings.Repeat("é", content.MaxBodyRunes)}); err != nil {
		t.Fatalf("body at limit: %v", err)
	}
}

func TestCreateReplyBuildsPath(t *testing.T) {
	f := newContentFixture()
	p, _ := f.svc.CreatePost(bg(), uuid.New(), CreatePostInput{Title: "t", Body: "b"})

	top, err := f.svc.CreateReply(bg(), uuid.New(), p.ID, CreateReplyInput{Body: "first"})
	if err != nil {
		t.Fatalf("top reply: %v", err)
	}
	if top.Depth != 1 || top.Path != content.ChildPath("", top.ID) {
		t.Fatalf("top: depth=%d path=%s", top.Depth, top.Path)
	}
	child, err := f.svc.CreateReply(bg(), uuid.New(), p.ID, CreateReplyInput{Body: "second", ParentReplyID: &top.ID})
	if err != nil {
		t.Fatalf("child reply: %v", err)
	}
	if child.Depth != 2 || child.Path != content.ChildPath(top.Path, child.ID) {
		t.Fatalf("child: depth=%d path=%s", child.Depth, child.Path)
	}
	if p.ReplyCount != 2 || top.ReplyCount != 1 {
		t.Fatalf("counts: post=%d top=%d", p.ReplyCount, top.ReplyCount)
	}
	if len(f.jobs.enqueued) != 3 {
		t.Fatalf("enqueued: want=3 got=%d", len(f.jobs.enqueued))
	}

	sub, err := f.svc.Thread(bg(), p.ID, &top.ID, 0)
	if err != nil || len(sub) != 2 {
		t.Fatalf("subtree: want=2 got=%d err=%v", len(sub), err)
	}
}

func TestCreateReplyRejectsCrossPostParent(t *testing.T) {
	f := newContentFixture()
	a, _ := f.svc.CreatePost(bg(), uuid.New(), CreatePostInput{Title: "a", Body: "a"})
	b, _ := f.svc.CreatePost(bg(), uuid.New(), CreatePostInput{Title: "b", Body: "b"})
	r, _ := f.svc.CreateReply(bg(), uuid.New(), a.ID, CreateReplyInput{Body: "on a"})

	if _, err := f.svc.CreateReply(bg(), uuid.New(), b.ID, CreateReplyInput{Body: "x", ParentReplyID: &r.ID}); !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("cross-post parent: want=validation got=%v", err)
	}
	if _, err := f.svc.CreateReply(bg(), uuid.New(), uuid.New(), CreateReplyInput{Body: "x"}); !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("missing post: want=not_found got=%v", err)
	}
	missing := uuid.New()
	if _, err := f.svc.CreateReply(bg(), uuid.New(), a.ID, CreateReplyInput{Body: "x", TargetADUID: &missing}); !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("missing target adu: want=validation got=%v", err)
	}
}

func TestCreateReplyDepthLimit(t *testing.T) {
	f := newContentFixture()
	p, _ := f.svc.CreatePost(bg(), uuid.New(), CreatePostInput{Title: "t", Body: "b"})
	deep := &types.Reply{ID: uuid.New(), PostID: p.ID, Depth: content.MaxReplyDepth, Path: "x"}
	f.replies.byID[deep.ID] = deep
	if _, err := f.svc.CreateReply(bg(), uuid.New(), p.ID, CreateReplyInput{Body: "x", ParentReplyID: &deep.ID}); !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("too deep: want=validation got=%v", err)
	}
}

func TestDeleteRequiresAuthor(t *testing.T) {
	f := newContentFixture()
	author := uuid.New()
	p, _ := f.svc.CreatePost(bg(), author, CreatePostInput{Title: "t", Body: "b"})
	if err := f.svc.DeletePost(bg(), p.ID, uuid.New()); !types.IsCode(err, types.CodeForbidden) {
		t.Fatalf("non-author: want=forbidden got=%v", err)
	}
	if err := f.svc.DeletePost(bg(), p.ID, author); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if len(f.index.removed) != 1 || f.index.removed[0] != p.ID {
		t.Fatalf("index removal: got=%v", f.index.removed)
	}
	if _, err := f.svc.GetPost(bg(), p.ID); !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("deleted post: want=not_found got=%v", err)
	}
}
