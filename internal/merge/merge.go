// Package merge implements the import/merge engine (C9): matching
// incoming records against the in-memory store by external reference,
// content fingerprint, then identifier, and merging matched pairs with a
// last-writer-wins rule at record granularity plus embedded-list union.
package merge

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
	"github.com/hotschmoe/beads-zig-sub005/internal/jsonl"
	"github.com/hotschmoe/beads-zig-sub005/internal/store"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

// MatchKind records how an incoming record was matched during Import.
type MatchKind string

const (
	MatchExternalRef MatchKind = "external_ref"
	MatchFingerprint MatchKind = "fingerprint"
	MatchIdentifier  MatchKind = "identifier"
	MatchNew         MatchKind = "new"
)

// Result summarizes one incoming record's outcome.
type Result struct {
	ID    string
	Match MatchKind
}

// Options configures Import.
type Options struct {
	// OverwriteEmptyGuard, when true, rejects importing an empty snapshot
	// over a non-empty store.
	OverwriteEmptyGuard bool
}

// Import applies the four-phase match precedence of §4.9 to every record
// in incoming, merging matched pairs in place and inserting unmatched
// records as new. Pre-flight rejections (conflict markers in the source,
// or an empty snapshot over a non-empty store under the overwrite-empty
// guard) are fatal and leave s untouched.
func Import(ctx context.Context, s *store.Store, snapshotPath string, incoming []types.Issue, opts Options) ([]Result, error) {
	if ok, err := jsonl.ScanConflictMarkers(snapshotPath); err != nil {
		return nil, err
	} else if ok {
		return nil, beaderr.MergeConflictDetected(snapshotPath)
	}
	if opts.OverwriteEmptyGuard && len(incoming) == 0 && s.Len() > 0 {
		return nil, beaderr.WouldOverwriteData(snapshotPath)
	}

	if err := computeFingerprints(ctx, incoming); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(incoming))
	for _, rec := range incoming {
		kind, matchedID := match(s, rec)
		switch kind {
		case MatchNew:
			if err := s.Insert(rec); err != nil {
				return nil, err
			}
			results = append(results, Result{ID: rec.ID, Match: MatchNew})
		default:
			existing, _ := s.Get(matchedID)
			merged := mergeRecords(existing, rec)
			if err := s.Update(merged); err != nil {
				return nil, err
			}
			results = append(results, Result{ID: matchedID, Match: kind})
		}
	}
	return results, nil
}

// computeFingerprints fills in any incoming record's content fingerprint
// concurrently; this is pure and side-effect-free against the store, so
// it safely runs ahead of the single-threaded match-and-merge pass.
func computeFingerprints(ctx context.Context, incoming []types.Issue) error {
	g, _ := errgroup.WithContext(ctx)
	for i := range incoming {
		i := i
		g.Go(func() error {
			if incoming[i].Fingerprint == "" {
				incoming[i].Fingerprint = incoming[i].ComputeFingerprint()
			}
			return nil
		})
	}
	return g.Wait()
}

func match(s *store.Store, rec types.Issue) (MatchKind, string) {
	if rec.ExternalRef != nil && *rec.ExternalRef != "" {
		if id, ok := findByExternalRef(s, *rec.ExternalRef); ok {
			return MatchExternalRef, id
		}
	}
	if rec.Fingerprint != "" {
		if id, ok := s.FindByFingerprint(rec.Fingerprint); ok {
			return MatchFingerprint, id
		}
	}
	if _, ok := s.Get(rec.ID); ok {
		return MatchIdentifier, rec.ID
	}
	return MatchNew, ""
}

func findByExternalRef(s *store.Store, ref string) (string, bool) {
	for _, issue := range s.All() {
		if issue.ExternalRef != nil && *issue.ExternalRef == ref {
			return issue.ID, true
		}
	}
	return "", false
}

// mergeRecords merges incoming into existing: the record with the greater
// UpdatedAt wins at field granularity for scalars, ties broken by the
// lexicographically greater fingerprint; embedded lists (labels,
// dependencies, comments) union by their key.
func mergeRecords(existing, incoming types.Issue) types.Issue {
	winner, loser := existing, incoming
	if incoming.UpdatedAt.After(existing.UpdatedAt) ||
		(incoming.UpdatedAt.Equal(existing.UpdatedAt) && incoming.Fingerprint > existing.Fingerprint) {
		winner, loser = incoming, existing
	}

	merged := winner
	merged.ID = existing.ID
	merged.Labels = unionLabels(existing.Labels, incoming.Labels)
	merged.Dependencies = unionDependencies(existing.Dependencies, incoming.Dependencies)
	merged.Comments = unionComments(existing.Comments, incoming.Comments)
	merged.Events = append(append([]types.Event{}, existing.Events...), incoming.Events...)
	merged.Unknown = mergeUnknown(loser.Unknown, winner.Unknown)
	return merged
}

func unionLabels(a, b []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range append(append([]string{}, a...), b...) {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func unionDependencies(a, b []types.Dependency) []types.Dependency {
	seen := make(map[string]struct{})
	var out []types.Dependency
	for _, dep := range append(append([]types.Dependency{}, a...), b...) {
		key := dep.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, dep)
	}
	return out
}

func unionComments(a, b []types.Comment) []types.Comment {
	seen := make(map[int]struct{})
	var out []types.Comment
	for _, c := range append(append([]types.Comment{}, a...), b...) {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// mergeUnknown unions unrecognized top-level fields from both sides,
// preferring b's value (the merge winner's) on key collision.
func mergeUnknown(a, b map[string]json.RawMessage) map[string]json.RawMessage {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
