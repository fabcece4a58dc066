package deps

import (
	"testing"

	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

func mkIssue(id string) types.Issue {
	return types.Issue{ID: id, Title: id, Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask}
}

func TestAddEdgeRejectsSelfDependency(t *testing.T) {
	g := NewGraph([]types.Issue{mkIssue("bd-a")})
	if err := g.AddEdge("bd-a", "bd-a", types.DepBlocks, "tester", 0); err == nil {
		t.Fatalf("expected SelfDependency error")
	}
}

func TestAddEdgeDetectsCycle(t *testing.T) {
	g := NewGraph([]types.Issue{mkIssue("bd-a"), mkIssue("bd-b"), mkIssue("bd-c")})

	if err := g.AddEdge("bd-b", "bd-a", types.DepBlocks, "tester", 0); err != nil {
		t.Fatalf("dep add B A failed: %v", err)
	}
	if err := g.AddEdge("bd-c", "bd-b", types.DepBlocks, "tester", 0); err != nil {
		t.Fatalf("dep add C B failed: %v", err)
	}
	err := g.AddEdge("bd-a", "bd-c", types.DepBlocks, "tester", 0)
	if err == nil {
		t.Fatalf("expected CycleDetected for A -> C")
	}
}

func TestAddEdgeAllowsNonReadinessKindCycle(t *testing.T) {
	g := NewGraph([]types.Issue{mkIssue("bd-a"), mkIssue("bd-b")})
	if err := g.AddEdge("bd-a", "bd-b", types.DepRelated, "tester", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddEdge("bd-b", "bd-a", types.DepRelated, "tester", 0); err != nil {
		t.Fatalf("related edges should not cycle-check: %v", err)
	}
}

func TestRemoveEdge(t *testing.T) {
	g := NewGraph([]types.Issue{mkIssue("bd-a"), mkIssue("bd-b")})
	if err := g.AddEdge("bd-a", "bd-b", types.DepBlocks, "tester", 0); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}
	if err := g.RemoveEdge("bd-a", "bd-b", types.DepBlocks); err != nil {
		t.Fatalf("RemoveEdge failed: %v", err)
	}
	if err := g.RemoveEdge("bd-a", "bd-b", types.DepBlocks); err == nil {
		t.Fatalf("expected DependencyNotFound on second removal")
	}
}

func TestBlockersAndDependents(t *testing.T) {
	g := NewGraph([]types.Issue{mkIssue("bd-a"), mkIssue("bd-b"), mkIssue("bd-c")})
	_ = g.AddEdge("bd-a", "bd-b", types.DepBlocks, "tester", 0)
	_ = g.AddEdge("bd-c", "bd-b", types.DepBlocks, "tester", 0)

	blockers := g.Blockers("bd-a")
	if len(blockers) != 1 || blockers[0] != "bd-b" {
		t.Fatalf("got blockers %v, want [bd-b]", blockers)
	}

	dependents := g.Dependents("bd-b")
	if len(dependents) != 2 {
		t.Fatalf("got %d dependents, want 2", len(dependents))
	}
}

func TestDetectCycles(t *testing.T) {
	g := NewGraph([]types.Issue{mkIssue("bd-a"), mkIssue("bd-b")})
	a := g.issues["bd-a"]
	b := g.issues["bd-b"]
	a.Dependencies = append(a.Dependencies, types.Dependency{From: "bd-a", To: "bd-b", Type: types.DepBlocks})
	b.Dependencies = append(b.Dependencies, types.Dependency{From: "bd-b", To: "bd-a", Type: types.DepBlocks})

	cycles := g.DetectCycles()
	if len(cycles) == 0 {
		t.Fatalf("expected at least one cycle")
	}
}

func TestTreeMarksRevisitedNodeAsCycle(t *testing.T) {
	g := NewGraph([]types.Issue{mkIssue("bd-a"), mkIssue("bd-b")})
	a := g.issues["bd-a"]
	b := g.issues["bd-b"]
	a.Dependencies = append(a.Dependencies, types.Dependency{From: "bd-a", To: "bd-b", Type: types.DepBlocks})
	b.Dependencies = append(b.Dependencies, types.Dependency{From: "bd-b", To: "bd-a", Type: types.DepBlocks})

	nodes := g.Tree("bd-a", 5)
	found := false
	for _, n := range nodes {
		if n.IsCycle {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a cycle-marked node in tree output: %+v", nodes)
	}
}

func TestValidateExternalRef(t *testing.T) {
	if err := ValidateExternalRef("external:proj:cap"); err != nil {
		t.Fatalf("expected valid ref, got %v", err)
	}
	if err := ValidateExternalRef("external:proj"); err == nil {
		t.Fatalf("expected invalid ref error")
	}
	if err := ValidateExternalRef("notexternal:proj:cap"); err == nil {
		t.Fatalf("expected invalid ref error for wrong prefix")
	}
}

func TestParseExternalRef(t *testing.T) {
	project, capability := ParseExternalRef("external:beads:storage")
	if project != "beads" || capability != "storage" {
		t.Fatalf("got (%q, %q)", project, capability)
	}
	project, capability = ParseExternalRef("bad")
	if project != "" || capability != "" {
		t.Fatalf("expected empty strings for invalid ref")
	}
}
