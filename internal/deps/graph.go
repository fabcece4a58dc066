// Package deps implements the dependency graph (C7). There is no
// separate edge store: edges live in each issue's embedded dependency
// list, and this package exposes graph-shaped operations over that data.
package deps

import (
	"strings"
	"time"

	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

// Graph is an in-memory view over every issue's embedded dependency list,
// built fresh from a store snapshot for the duration of one operation.
type Graph struct {
	issues map[string]*types.Issue
}

// NewGraph builds a Graph from the given issues. The slice is not
// retained; Graph holds pointers into a private copy.
func NewGraph(issues []types.Issue) *Graph {
	g := &Graph{issues: make(map[string]*types.Issue, len(issues))}
	for i := range issues {
		issue := issues[i]
		g.issues[issue.ID] = &issue
	}
	return g
}

// IssueByID returns the issue backing a graph node, by value.
func (g *Graph) IssueByID(id string) (types.Issue, bool) {
	issue, ok := g.issues[id]
	if !ok {
		return types.Issue{}, false
	}
	return *issue, true
}

// AddEdge appends a dependency edge from -> to of the given kind to
// from's embedded list. It rejects self-dependencies outright, and for
// kinds that affect readiness (blocks, parent_child) runs a reachability
// check from to back to from over the same kind-restricted subgraph,
// returning CycleDetected(path) if introducing the edge would close a
// cycle.
func (g *Graph) AddEdge(from, to string, kind types.DependencyType, actor string, now int64) error {
	if from == to {
		return beaderr.SelfDependency(from)
	}
	if kind.AffectsReadiness() {
		if path, found := g.reachable(to, from, kind); found {
			return beaderr.CycleDetected(append([]string{from, to}, path...))
		}
	}

	issue, ok := g.issues[from]
	if !ok {
		return beaderr.IssueNotFound(from)
	}
	dep := types.Dependency{From: from, To: to, Type: kind, CreatedBy: actor, CreatedAt: time.Unix(now, 0).UTC()}
	for _, existing := range issue.Dependencies {
		if existing.Key() == dep.Key() {
			return nil
		}
	}
	issue.Dependencies = append(issue.Dependencies, dep)
	return nil
}

// RemoveEdge deletes the from -> to edge of the given kind, if present.
func (g *Graph) RemoveEdge(from, to string, kind types.DependencyType) error {
	issue, ok := g.issues[from]
	if !ok {
		return beaderr.IssueNotFound(from)
	}
	kept := issue.Dependencies[:0]
	removed := false
	for _, dep := range issue.Dependencies {
		if dep.To == to && dep.Type.Equal(kind) {
			removed = true
			continue
		}
		kept = append(kept, dep)
	}
	issue.Dependencies = kept
	if !removed {
		return beaderr.DependencyNotFound(from, to)
	}
	return nil
}

// Blockers returns the ids an issue depends on via a "blocks" edge,
// whatever the status of those targets; closed blockers are included.
func (g *Graph) Blockers(id string) []string {
	issue, ok := g.issues[id]
	if !ok {
		return nil
	}
	var out []string
	for _, dep := range issue.Dependencies {
		if dep.Type.Equal(types.DepBlocks) {
			out = append(out, dep.To)
		}
	}
	return out
}

// Dependents returns every issue with an edge targeting id.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, issue := range g.issues {
		for _, dep := range issue.Dependencies {
			if dep.To == id {
				out = append(out, issue.ID)
			}
		}
	}
	return out
}

// reachable runs a breadth-first search from start, restricted to edges
// of kind, looking for target. It returns the path from start to target
// (exclusive of start, inclusive of target) when found.
func (g *Graph) reachable(start, target string, kind types.DependencyType) ([]string, bool) {
	if start == target {
		return []string{target}, true
	}
	visited := map[string]bool{start: true}
	type frame struct {
		id   string
		path []string
	}
	queue := []frame{{id: start, path: nil}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		issue, ok := g.issues[cur.id]
		if !ok {
			continue
		}
		for _, dep := range issue.Dependencies {
			if !dep.Type.Equal(kind) {
				continue
			}
			nextPath := append(append([]string{}, cur.path...), dep.To)
			if dep.To == target {
				return nextPath, true
			}
			if !visited[dep.To] {
				visited[dep.To] = true
				queue = append(queue, frame{id: dep.To, path: nextPath})
			}
		}
	}
	return nil, false
}

// DetectCycles runs a global DFS over every dependency kind that affects
// readiness and returns every fundamental cycle found, each expressed as
// the ordered list of ids that closes the loop (first id repeated last).
func (g *Graph) DetectCycles() [][]string {
	var cycles [][]string
	seenCycle := make(map[string]bool)

	var visit func(id string, stack []string, onStack map[string]bool)
	visit = func(id string, stack []string, onStack map[string]bool) {
		issue, ok := g.issues[id]
		if !ok {
			return
		}
		for _, dep := range issue.Dependencies {
			if !dep.Type.AffectsReadiness() {
				continue
			}
			if onStack[dep.To] {
				cycle := cyclePath(stack, dep.To)
				key := strings.Join(cycle, ">")
				if !seenCycle[key] {
					seenCycle[key] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			onStack[dep.To] = true
			visit(dep.To, append(stack, dep.To), onStack)
			delete(onStack, dep.To)
		}
	}

	for id := range g.issues {
		visit(id, []string{id}, map[string]bool{id: true})
	}
	return cycles
}

func cyclePath(stack []string, closingID string) []string {
	for i, id := range stack {
		if id == closingID {
			path := append([]string{}, stack[i:]...)
			return append(path, closingID)
		}
	}
	return append(append([]string{}, stack...), closingID)
}

// TreeNode is one entry in a Tree() traversal.
type TreeNode struct {
	ID      string
	Depth   int
	IsCycle bool
	Status  types.Status
}

// Tree produces a depth-first labeled tree of id's "blocks" dependencies
// up to maxDepth. A node already on the current path is emitted once more
// with IsCycle set and is not revisited.
func (g *Graph) Tree(id string, maxDepth int) []TreeNode {
	var out []TreeNode
	var walk func(current string, depth int, onPath map[string]bool)
	walk = func(current string, depth int, onPath map[string]bool) {
		issue, ok := g.issues[current]
		status := types.StatusOpen
		if ok {
			status = issue.Status
		}
		out = append(out, TreeNode{ID: current, Depth: depth, Status: status})
		if !ok || depth >= maxDepth {
			return
		}
		for _, dep := range issue.Dependencies {
			if !dep.Type.Equal(types.DepBlocks) {
				continue
			}
			if onPath[dep.To] {
				out = append(out, TreeNode{ID: dep.To, Depth: depth + 1, IsCycle: true})
				continue
			}
			onPath[dep.To] = true
			walk(dep.To, depth+1, onPath)
			delete(onPath, dep.To)
		}
	}
	walk(id, 0, map[string]bool{id: true})
	return out
}

// ValidateExternalRef validates the format of an external dependency
// reference: "external:<project>:<capability>".
func ValidateExternalRef(ref string) error {
	if !strings.HasPrefix(ref, "external:") {
		return beaderr.InvalidExternalRef(ref)
	}
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return beaderr.InvalidExternalRef(ref)
	}
	return nil
}

// IsExternalRef reports whether ref uses the external reference scheme.
func IsExternalRef(ref string) bool {
	return strings.HasPrefix(ref, "external:")
}

// ParseExternalRef splits a validated external reference into its project
// and capability components. It returns empty strings for an invalid ref.
func ParseExternalRef(ref string) (project, capability string) {
	if ValidateExternalRef(ref) != nil {
		return "", ""
	}
	parts := strings.SplitN(ref, ":", 3)
	return parts[1], parts[2]
}
