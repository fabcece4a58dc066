package beads_test

import (
	"path/filepath"
	"testing"

	"github.com/hotschmoe/beads-zig-sub005"
)

func TestInitThenOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".beads")

	ws, err := beads.Init(dir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if ws.Dir != dir {
		t.Errorf("Dir = %q, want %q", ws.Dir, dir)
	}

	reopened, err := beads.Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if reopened.Canonical != ws.Canonical {
		t.Errorf("Canonical mismatch after reopen")
	}
}

func TestInitTwiceFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".beads")
	if _, err := beads.Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := beads.Init(dir); err == nil {
		t.Fatal("expected second Init to fail")
	}
}

func TestOpenWithoutInitFails(t *testing.T) {
	if _, err := beads.Open(t.TempDir()); err == nil {
		t.Fatal("expected Open to fail on an uninitialized directory")
	}
}

func TestAddGetCloseReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".beads")
	ws, err := beads.Init(dir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	issue, err := ws.Add(beads.Issue{Title: "fix the thing", Priority: 1, IssueType: beads.TypeBug}, "alice")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if issue.ID == "" {
		t.Fatal("expected a generated id")
	}

	got, err := ws.Get(issue.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "fix the thing" {
		t.Errorf("Title = %q", got.Title)
	}

	closed, err := ws.Close(issue.ID, "alice")
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !closed.Status.Equal(beads.StatusClosed) {
		t.Errorf("expected closed status, got %v", closed.Status)
	}

	reopened, err := ws.Reopen(issue.ID, "alice")
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if !reopened.Status.Equal(beads.StatusOpen) {
		t.Errorf("expected open status after reopen, got %v", reopened.Status)
	}
}

func TestAddDependencyRejectsSelfDependency(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".beads")
	ws, err := beads.Init(dir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	issue, err := ws.Add(beads.Issue{Title: "solo"}, "alice")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := ws.AddDependency(issue.ID, issue.ID, beads.DepBlocks, "alice"); err == nil {
		t.Fatal("expected self-dependency to be rejected")
	}
}

func TestReadyExcludesBlockedIssue(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".beads")
	ws, err := beads.Init(dir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	blocker, err := ws.Add(beads.Issue{Title: "blocker"}, "alice")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	blocked, err := ws.Add(beads.Issue{Title: "blocked"}, "alice")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := ws.AddDependency(blocked.ID, blocker.ID, beads.DepBlocks, "alice"); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}

	ready, err := ws.Ready()
	if err != nil {
		t.Fatalf("Ready failed: %v", err)
	}
	for _, issue := range ready {
		if issue.ID == blocked.ID {
			t.Fatalf("expected %s to be excluded from ready while blocked", blocked.ID)
		}
	}
}

// Test that exported constants have their documented wire string values.
func TestConstants(t *testing.T) {
	if beads.StatusOpen.String() != "open" {
		t.Errorf("StatusOpen = %q", beads.StatusOpen.String())
	}
	if beads.StatusBlocked.String() != "blocked" {
		t.Errorf("StatusBlocked = %q", beads.StatusBlocked.String())
	}
	if beads.TypeBug.String() != "bug" {
		t.Errorf("TypeBug = %q", beads.TypeBug.String())
	}
	if beads.DepBlocks.String() != "blocks" {
		t.Errorf("DepBlocks = %q", beads.DepBlocks.String())
	}
}
