// Package ready implements the ready/blocked evaluator (C10): pure
// predicates over a store snapshot and the current wall-clock second.
package ready

import (
	"strconv"
	"time"

	"github.com/hotschmoe/beads-zig-sub005/internal/deps"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

// readyStatus reports whether status is one of the statuses eligible for
// readiness: open, in_progress, pinned, or the custom "ready" label.
func readyStatus(s types.Status) bool {
	return s.Equal(types.StatusOpen) || s.Equal(types.StatusInProgress) ||
		s.Equal(types.StatusPinned) || s.String() == "ready"
}

func isDeferred(issue types.Issue, now time.Time) bool {
	return issue.DeferUntil != nil && issue.DeferUntil.After(now)
}

func hasOutstandingBlocker(g *deps.Graph, issue types.Issue, byID map[string]types.Issue) bool {
	for _, target := range g.Blockers(issue.ID) {
		blocker, ok := byID[target]
		if !ok {
			continue
		}
		if !blocker.Status.Equal(types.StatusClosed) && !blocker.Status.Equal(types.StatusTombstone) {
			return true
		}
	}
	return false
}

// Ready returns the issues that are ready to work: a readiness-eligible
// status, not a tombstone, not currently deferred, and with no outgoing
// "blocks" edge targeting a non-closed, non-tombstone issue.
func Ready(issues []types.Issue, now time.Time) []types.Issue {
	byID := indexByID(issues)
	g := deps.NewGraph(issues)

	var out []types.Issue
	for _, issue := range issues {
		if issue.IsTombstone() || !readyStatus(issue.Status) || isDeferred(issue, now) {
			continue
		}
		if hasOutstandingBlocker(g, issue, byID) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

// Blocked returns open issues with at least one outstanding blocker.
func Blocked(issues []types.Issue, now time.Time) []types.Issue {
	byID := indexByID(issues)
	g := deps.NewGraph(issues)

	var out []types.Issue
	for _, issue := range issues {
		if !issue.Status.Equal(types.StatusOpen) {
			continue
		}
		if hasOutstandingBlocker(g, issue, byID) {
			out = append(out, issue)
		}
	}
	return out
}

// Stale returns non-closed, non-tombstone issues whose updated_at is at
// least days*86400 seconds in the past relative to now.
func Stale(issues []types.Issue, now time.Time, days int) []types.Issue {
	threshold := time.Duration(days) * 24 * time.Hour
	var out []types.Issue
	for _, issue := range issues {
		if issue.Status.Equal(types.StatusClosed) || issue.Status.Equal(types.StatusTombstone) {
			continue
		}
		if now.Sub(issue.UpdatedAt) >= threshold {
			out = append(out, issue)
		}
	}
	return out
}

// Group names the field count_by groups by.
type Group string

const (
	GroupStatus   Group = "status"
	GroupPriority Group = "priority"
	GroupType     Group = "type"
	GroupAssignee Group = "assignee"
	GroupLabel    Group = "label"
)

// CountBy tallies issues by the given grouping key. For GroupLabel, an
// issue with N labels contributes to N buckets.
func CountBy(issues []types.Issue, group Group) map[string]int {
	counts := make(map[string]int)
	for _, issue := range issues {
		if issue.IsTombstone() {
			continue
		}
		for _, key := range groupKeys(issue, group) {
			counts[key]++
		}
	}
	return counts
}

func groupKeys(issue types.Issue, group Group) []string {
	switch group {
	case GroupStatus:
		return []string{issue.Status.String()}
	case GroupPriority:
		return []string{priorityKey(issue.Priority)}
	case GroupType:
		return []string{issue.IssueType.String()}
	case GroupAssignee:
		if issue.Assignee == nil || *issue.Assignee == "" {
			return []string{"unassigned"}
		}
		return []string{*issue.Assignee}
	case GroupLabel:
		if len(issue.Labels) == 0 {
			return nil
		}
		return issue.Labels
	default:
		return nil
	}
}

func priorityKey(p int) string {
	return strconv.Itoa(p)
}

func indexByID(issues []types.Issue) map[string]types.Issue {
	byID := make(map[string]types.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}
	return byID
}
