package content

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestHashIsPureFunctionOfBody(t *testing.T) {
	if Hash("a claim") != Hash("a claim") {
		t.Fatalf("hash not deterministic")
	}
	if Hash("a claim") == Hash("a claim.") {
		t.Fatalf("different bodies share a hash")
	}
}

func TestNeedsAnalysis(t *testing.T) {
	body := "Cities should fund transit."
	u := &Unit{Body: body, AnalysisStatus: AnalysisCompleted, AnalyzedHash: Hash(body)}
	if u.NeedsAnalysis() {
		t.Fatalf("unchanged completed body: want no re-analysis")
	}

	u.Body = body + " Buses are cheap."
	if !u.NeedsAnalysis() {
		t.Fatalf("changed body: want re-analysis")
	}

	u.Body = body
	u.AnalysisStatus = AnalysisProcessing
	if !u.NeedsAnalysis() {
		t.Fatalf("processing after crash: want re-analysis")
	}

	u.Deleted = true
	if u.NeedsAnalysis() {
		t.Fatalf("deleted: want no analysis")
	}
}

func TestChildPath(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	top := ChildPath("", a)
	if strings.Contains(top, "-") || !strings.HasPrefix(top, "r") {
		t.Fatalf("label: got=%q", top)
	}
	nested := ChildPath(top, b)
	if nested != top+"."+PathLabel(b) {
		t.Fatalf("nested: got=%q", nested)
	}
}
