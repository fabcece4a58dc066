package engine

import (
	"fmt"
	"strings"

	"github.com/hotschmoe/beads-zig-sub005/internal/lockfile"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

// Finding is one consistency problem surfaced by Doctor.
type Finding struct {
	IssueID string
	Problem string
}

// Doctor runs a read-only consistency scan over the workspace: orphaned
// dependency targets, identifiers deeper than three hierarchy levels,
// duplicate fingerprints across distinct non-tombstone issues, and a
// stale-lock hint (the recorded holder PID is no longer running). It does
// not check that parent/child links are symmetric.
func (w *Workspace) Doctor() ([]Finding, error) {
	s, err := w.load()
	if err != nil {
		return nil, err
	}
	issues := s.All()

	var findings []Finding
	if stale, pid, err := lockfile.StaleHolder(w.Dir); err == nil && stale {
		findings = append(findings, Finding{
			Problem: fmt.Sprintf("lock file records pid %d, which is no longer running", pid),
		})
	}

	byID := make(map[string]types.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}

	fingerprints := make(map[string]string)

	for _, issue := range issues {
		for _, dep := range issue.Dependencies {
			if _, ok := byID[dep.To]; !ok {
				findings = append(findings, Finding{
					IssueID: issue.ID,
					Problem: fmt.Sprintf("dependency %s -> %s (%s): target does not exist", dep.From, dep.To, dep.Type.String()),
				})
			}
		}

		if strings.Count(issue.ID, ".") > 2 {
			findings = append(findings, Finding{
				IssueID: issue.ID,
				Problem: "identifier exceeds the three-level hierarchy depth",
			})
		}

		if issue.IsTombstone() {
			continue
		}
		if existing, ok := fingerprints[issue.Fingerprint]; ok && existing != issue.ID {
			findings = append(findings, Finding{
				IssueID: issue.ID,
				Problem: fmt.Sprintf("duplicate fingerprint shared with %s", existing),
			})
			continue
		}
		fingerprints[issue.Fingerprint] = issue.ID
	}

	return findings, nil
}
