// Package store implements the in-memory issue store (C6): an ordered
// container of issues rebuilt on every process by replaying the canonical
// file and then the write-ahead log.
package store

import (
	"sort"
	"strings"
	"time"

	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
	"github.com/hotschmoe/beads-zig-sub005/internal/jsonl"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
	"github.com/hotschmoe/beads-zig-sub005/internal/wal"
)

// Store holds the full dataset in memory: an ordered slice of issues, an
// id-to-position index, a fingerprint-to-id index for import dedupe, and a
// set of identifiers touched since the last export.
type Store struct {
	issues        []types.Issue
	byID          map[string]int
	byFingerprint map[string]string
	dirty         map[string]struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{
		byID:          make(map[string]int),
		byFingerprint: make(map[string]string),
		dirty:         make(map[string]struct{}),
	}
}

// Insert adds a new issue. It is an error to insert an id already present.
func (s *Store) Insert(issue types.Issue) error {
	if _, exists := s.byID[issue.ID]; exists {
		return beaderr.IssueNotFound(issue.ID).WithDetail("id already present, expected insert of a new id")
	}
	s.issues = append(s.issues, issue)
	s.byID[issue.ID] = len(s.issues) - 1
	if issue.Fingerprint != "" {
		s.byFingerprint[issue.Fingerprint] = issue.ID
	}
	s.markDirty(issue.ID)
	return nil
}

// Get returns the issue with the given id.
func (s *Store) Get(id string) (types.Issue, bool) {
	pos, ok := s.byID[id]
	if !ok {
		return types.Issue{}, false
	}
	return s.issues[pos], true
}

// Update replaces the issue at its existing position in place
// (last-writer-wins on identical id).
func (s *Store) Update(issue types.Issue) error {
	pos, ok := s.byID[issue.ID]
	if !ok {
		return beaderr.IssueNotFound(issue.ID)
	}
	old := s.issues[pos]
	if old.Fingerprint != "" && old.Fingerprint != issue.Fingerprint {
		delete(s.byFingerprint, old.Fingerprint)
	}
	s.issues[pos] = issue
	if issue.Fingerprint != "" {
		s.byFingerprint[issue.Fingerprint] = issue.ID
	}
	s.markDirty(issue.ID)
	return nil
}

// Delete soft-deletes the issue by converting it to a tombstone; the
// record and its identifier are retained permanently (I1).
func (s *Store) Delete(id string, now time.Time) error {
	pos, ok := s.byID[id]
	if !ok {
		return beaderr.IssueNotFound(id)
	}
	issue := s.issues[pos]
	if issue.Status.Equal(types.StatusTombstone) {
		return beaderr.AlreadyDeleted(id)
	}
	issue.Status = types.StatusTombstone
	issue.UpdatedAt = now
	s.issues[pos] = issue
	s.markDirty(id)
	return nil
}

// FindByFingerprint returns the id of the issue with the given content
// fingerprint, if any.
func (s *Store) FindByFingerprint(fingerprint string) (string, bool) {
	id, ok := s.byFingerprint[fingerprint]
	return id, ok
}

// Len returns the number of issues in the store, including tombstones.
func (s *Store) Len() int {
	return len(s.issues)
}

// All returns a defensive copy of every issue in the store, in storage
// order (not the list() sort order).
func (s *Store) All() []types.Issue {
	out := make([]types.Issue, len(s.issues))
	copy(out, s.issues)
	return out
}

// Dirty returns the set of identifiers touched since the last call to
// ClearDirty.
func (s *Store) Dirty() []string {
	out := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ClearDirty empties the dirty set, typically after a successful export.
func (s *Store) ClearDirty() {
	s.dirty = make(map[string]struct{})
}

func (s *Store) markDirty(id string) {
	s.dirty[id] = struct{}{}
}

// Filter configures List.
type Filter struct {
	StatusSet             []types.Status
	PriorityMin           *int
	PriorityMax           *int
	TypeSet               []types.IssueType
	Assignee              *string
	Owner                 *string
	LabelAnyOf            []string
	LabelAllOf            []string
	TextSubstring         string
	IncludeTombstones     bool
	IncludeDeferredBefore *time.Time
}

// List returns issues matching filter, sorted by priority ascending, then
// creation timestamp descending, ties broken by identifier lexicographic
// order (§4.6).
func (s *Store) List(filter Filter) []types.Issue {
	var out []types.Issue
	for _, issue := range s.issues {
		if matches(issue, filter) {
			out = append(out, issue)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func matches(issue types.Issue, f Filter) bool {
	if issue.IsTombstone() && !f.IncludeTombstones {
		return false
	}
	if len(f.StatusSet) > 0 && !statusIn(issue.Status, f.StatusSet) {
		return false
	}
	if f.PriorityMin != nil && issue.Priority < *f.PriorityMin {
		return false
	}
	if f.PriorityMax != nil && issue.Priority > *f.PriorityMax {
		return false
	}
	if len(f.TypeSet) > 0 && !typeIn(issue.IssueType, f.TypeSet) {
		return false
	}
	if f.Assignee != nil && (issue.Assignee == nil || *issue.Assignee != *f.Assignee) {
		return false
	}
	if f.Owner != nil && (issue.Owner == nil || *issue.Owner != *f.Owner) {
		return false
	}
	if len(f.LabelAnyOf) > 0 && !anyLabel(issue.Labels, f.LabelAnyOf) {
		return false
	}
	if len(f.LabelAllOf) > 0 && !allLabels(issue.Labels, f.LabelAllOf) {
		return false
	}
	if f.TextSubstring != "" && !containsText(issue, f.TextSubstring) {
		return false
	}
	if f.IncludeDeferredBefore == nil && issue.DeferUntil != nil && issue.DeferUntil.After(time.Now().UTC()) {
		return false
	}
	if f.IncludeDeferredBefore != nil && issue.DeferUntil != nil && issue.DeferUntil.After(*f.IncludeDeferredBefore) {
		return false
	}
	return true
}

func statusIn(s types.Status, set []types.Status) bool {
	for _, candidate := range set {
		if s.Equal(candidate) {
			return true
		}
	}
	return false
}

func typeIn(t types.IssueType, set []types.IssueType) bool {
	for _, candidate := range set {
		if t.Equal(candidate) {
			return true
		}
	}
	return false
}

func anyLabel(labels, want []string) bool {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func allLabels(labels, want []string) bool {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func containsText(issue types.Issue, substr string) bool {
	// Linear substring scan, per the spec's baseline (Open Question (c)).
	needle := strings.ToLower(substr)
	return strings.Contains(strings.ToLower(issue.Title), needle) ||
		strings.Contains(strings.ToLower(issue.Description), needle) ||
		strings.Contains(strings.ToLower(issue.Notes), needle)
}

// Load rebuilds a Store from the canonical file and the WAL: the canonical
// file is read strictly-lenient (corrupt lines are skipped, not fatal),
// then WAL records are applied in order.
func Load(canonicalPath, walPath string) (*Store, []jsonl.Rejected, error) {
	read, err := jsonl.ReadAll(canonicalPath, true)
	if err != nil {
		return nil, nil, err
	}

	s := New()
	for _, issue := range read.Issues {
		if err := s.Insert(issue); err != nil {
			// Duplicate ids in the canonical file itself: last one wins,
			// mirroring the replace-in-place rule applied to WAL updates.
			_ = s.Update(issue)
		}
	}

	walResult, err := wal.ReadAll(walPath)
	if err != nil {
		return nil, nil, err
	}
	if err := s.applyWAL(walResult.Records); err != nil {
		return nil, nil, err
	}

	return s, read.Rejected, nil
}

func (s *Store) applyWAL(records []wal.Record) error {
	for _, rec := range records {
		switch rec.Op {
		case wal.OpAdd:
			if rec.Data == nil {
				continue
			}
			if _, exists := s.byID[rec.ID]; exists {
				if err := s.Update(*rec.Data); err != nil {
					return err
				}
				continue
			}
			if err := s.Insert(*rec.Data); err != nil {
				return err
			}
		case wal.OpUpdate:
			if rec.Data == nil {
				continue
			}
			if _, exists := s.byID[rec.ID]; !exists {
				if err := s.Insert(*rec.Data); err != nil {
					return err
				}
				continue
			}
			if err := s.Update(*rec.Data); err != nil {
				return err
			}
		case wal.OpDelete:
			ts := time.Unix(rec.TS, 0).UTC()
			if _, exists := s.byID[rec.ID]; exists {
				_ = s.Delete(rec.ID, ts)
			}
		case wal.OpClose, wal.OpReopen, wal.OpSetBlocked, wal.OpUnsetBlocked:
			if err := s.applyStatusOp(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) applyStatusOp(rec wal.Record) error {
	pos, ok := s.byID[rec.ID]
	if !ok {
		return nil
	}
	issue := s.issues[pos]
	ts := time.Unix(rec.TS, 0).UTC()
	switch rec.Op {
	case wal.OpClose:
		issue.Status = types.StatusClosed
		issue.ClosedAt = &ts
	case wal.OpReopen:
		issue.Status = types.StatusOpen
		issue.ClosedAt = nil
	case wal.OpSetBlocked:
		issue.Status = types.StatusBlocked
	case wal.OpUnsetBlocked:
		issue.Status = types.StatusOpen
	}
	issue.UpdatedAt = ts
	return s.Update(issue)
}
