package ready

import (
	"testing"
	"time"

	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

func baseIssue(id string, status types.Status) types.Issue {
	return types.Issue{ID: id, Title: id, Status: status, Priority: 2, IssueType: types.TypeTask,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
}

func TestReadyExcludesBlockedIssues(t *testing.T) {
	now := time.Now().UTC()
	blocker := baseIssue("bd-a", types.StatusOpen)
	blocked := baseIssue("bd-b", types.StatusOpen)
	blocked.Dependencies = []types.Dependency{{From: "bd-b", To: "bd-a", Type: types.DepBlocks}}

	issues := []types.Issue{blocker, blocked}
	r := Ready(issues, now)
	if len(r) != 1 || r[0].ID != "bd-a" {
		t.Fatalf("got %+v, want only bd-a ready", r)
	}
}

func TestReadyIncludesUnblockedWhenBlockerClosed(t *testing.T) {
	now := time.Now().UTC()
	blocker := baseIssue("bd-a", types.StatusClosed)
	blocked := baseIssue("bd-b", types.StatusOpen)
	blocked.Dependencies = []types.Dependency{{From: "bd-b", To: "bd-a", Type: types.DepBlocks}}

	r := Ready([]types.Issue{blocker, blocked}, now)
	found := false
	for _, i := range r {
		if i.ID == "bd-b" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bd-b ready once its blocker is closed: %+v", r)
	}
}

func TestReadyExcludesDeferred(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(24 * time.Hour)
	issue := baseIssue("bd-a", types.StatusOpen)
	issue.DeferUntil = &future

	r := Ready([]types.Issue{issue}, now)
	if len(r) != 0 {
		t.Fatalf("expected deferred issue excluded from ready, got %+v", r)
	}
}

func TestBlockedReturnsOnlyOpenWithOutstandingBlocker(t *testing.T) {
	now := time.Now().UTC()
	blocker := baseIssue("bd-a", types.StatusOpen)
	blocked := baseIssue("bd-b", types.StatusOpen)
	blocked.Dependencies = []types.Dependency{{From: "bd-b", To: "bd-a", Type: types.DepBlocks}}

	b := Blocked([]types.Issue{blocker, blocked}, now)
	if len(b) != 1 || b[0].ID != "bd-b" {
		t.Fatalf("got %+v, want only bd-b blocked", b)
	}
}

func TestStaleReturnsOldNonClosedIssues(t *testing.T) {
	now := time.Now().UTC()
	old := baseIssue("bd-a", types.StatusOpen)
	old.UpdatedAt = now.Add(-10 * 24 * time.Hour)
	fresh := baseIssue("bd-b", types.StatusOpen)
	fresh.UpdatedAt = now

	s := Stale([]types.Issue{old, fresh}, now, 7)
	if len(s) != 1 || s[0].ID != "bd-a" {
		t.Fatalf("got %+v, want only bd-a stale", s)
	}
}

func TestStaleExcludesClosedAndTombstone(t *testing.T) {
	now := time.Now().UTC()
	closedOld := baseIssue("bd-a", types.StatusClosed)
	closedOld.UpdatedAt = now.Add(-30 * 24 * time.Hour)

	s := Stale([]types.Issue{closedOld}, now, 7)
	if len(s) != 0 {
		t.Fatalf("expected closed issues excluded from stale, got %+v", s)
	}
}

func TestCountByStatus(t *testing.T) {
	issues := []types.Issue{
		baseIssue("bd-a", types.StatusOpen),
		baseIssue("bd-b", types.StatusOpen),
		baseIssue("bd-c", types.StatusClosed),
	}
	counts := CountBy(issues, GroupStatus)
	if counts["open"] != 2 || counts["closed"] != 1 {
		t.Fatalf("got %v", counts)
	}
}

func TestCountByLabelFansOutMultipleBuckets(t *testing.T) {
	issue := baseIssue("bd-a", types.StatusOpen)
	issue.Labels = []string{"urgent", "bug"}
	counts := CountBy([]types.Issue{issue}, GroupLabel)
	if counts["urgent"] != 1 || counts["bug"] != 1 {
		t.Fatalf("got %v", counts)
	}
}

func TestCountByExcludesTombstones(t *testing.T) {
	issues := []types.Issue{
		baseIssue("bd-a", types.StatusOpen),
		baseIssue("bd-b", types.StatusTombstone),
	}
	counts := CountBy(issues, GroupStatus)
	if counts["open"] != 1 {
		t.Fatalf("got %v", counts)
	}
	if counts["tombstone"] != 0 {
		t.Fatalf("expected tombstone to be excluded from counts, got %v", counts)
	}
}
