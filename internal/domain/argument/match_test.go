package argument

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBestMatchHighestSimilarity(t *testing.T) {
	a := ClaimMatch{ClaimID: uuid.New(), Similarity: 0.81, DiscussionCount: 10}
	b := ClaimMatch{ClaimID: uuid.New(), Similarity: 0.93, DiscussionCount: 1}
	got, ok := BestMatch([]ClaimMatch{a, b})
	if !ok || got.ClaimID != b.ClaimID {
		t.Fatalf("best: want=%s got=%s", b.ClaimID, got.ClaimID)
	}
}

func TestBestMatchTieBreaksOnDiscussionCountThenAge(t *testing.T) {
	now := time.Now()
	young := ClaimMatch{ClaimID: uuid.New(), Similarity: 0.8, DiscussionCount: 3, CreatedAt: now}
	busy := ClaimMatch{ClaimID: uuid.New(), Similarity: 0.8, DiscussionCount: 7, CreatedAt: now}
	got, _ := BestMatch([]ClaimMatch{young, busy})
	if got.ClaimID != busy.ClaimID {
		t.Fatalf("discussion tie-break: want=%s got=%s", busy.ClaimID, got.ClaimID)
	}

	old := ClaimMatch{ClaimID: uuid.New(), Similarity: 0.8, DiscussionCount: 7, CreatedAt: now.Add(-time.Hour)}
	got, _ = BestMatch([]ClaimMatch{busy, old})
	if got.ClaimID != old.ClaimID {
		t.Fatalf("age tie-break: want=%s got=%s", old.ClaimID, got.ClaimID)
	}
}

func TestBestMatchEmpty(t *testing.T) {
	if _, ok := BestMatch(nil); ok {
		t.Fatalf("empty: want ok=false")
	}
}

func TestMatchesThreshold(t *testing.T) {
	cases := []struct {
		sim  float64
		want bool
	}{
		{0.75, true},
		{0.7499999, false},
		{0.9, true},
		{0.1, false},
	}
	for _, tc := range cases {
		if got := Matches(tc.sim, DefaultSimilarityThreshold); got != tc.want {
			t.Fatalf("Matches(%v): want=%v got=%v", tc.sim, tc.want, got)
		}
	}
}

func TestIsClaimType(t *testing.T) {
	if IsClaimType(TypeEvidence) {
		t.Fatalf("evidence should not be canonicalized")
	}
	for _, ty := range []string{TypeMajorClaim, TypeSupporting, TypeOpposing} {
		if !IsClaimType(ty) {
			t.Fatalf("%s: want claim type", ty)
		}
	}
}
