// Package engine ties the components (C1-C11) together into the
// workspace-level write/read data flow described by §2: a write opens the
// lock file, acquires the exclusive lock, appends a WAL record, fsyncs,
// releases the lock, and opportunistically triggers compaction; a read
// opens the canonical file, replays the WAL on top, and serves the query
// from the resulting in-memory store.
package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hotschmoe/beads-zig-sub005/internal/audit"
	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
	"github.com/hotschmoe/beads-zig-sub005/internal/compact"
	"github.com/hotschmoe/beads-zig-sub005/internal/configfile"
	"github.com/hotschmoe/beads-zig-sub005/internal/deps"
	"github.com/hotschmoe/beads-zig-sub005/internal/idgen"
	"github.com/hotschmoe/beads-zig-sub005/internal/jsonl"
	"github.com/hotschmoe/beads-zig-sub005/internal/lockfile"
	"github.com/hotschmoe/beads-zig-sub005/internal/merge"
	"github.com/hotschmoe/beads-zig-sub005/internal/ready"
	"github.com/hotschmoe/beads-zig-sub005/internal/store"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
	"github.com/hotschmoe/beads-zig-sub005/internal/wal"
)

const (
	canonicalFileName = "beads.jsonl"
	walFileName       = "beads.wal"
)

// Workspace is a handle to a project's .beads directory. All operations
// reload the store from disk (writes under the exclusive lock, reads
// without it), so a Workspace carries no cached state
// between calls; this matches the short-lived-process scheduling model
// (§5): each command execution rebuilds its view from disk.
type Workspace struct {
	Dir       string
	Canonical string
	WAL       string
	Config    configfile.Config
	Log       *slog.Logger
}

// log returns w.Log, falling back to slog.Default() for workspaces built
// before this field existed or left zero-valued by a caller.
func (w *Workspace) log() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.Default()
}

// Init creates a new workspace at dir: the directory itself plus an empty
// canonical file. It fails with AlreadyInitialized if dir already looks
// like a workspace.
func Init(dir string) (*Workspace, error) {
	canonical := filepath.Join(dir, canonicalFileName)
	if _, err := os.Stat(canonical); err == nil {
		return nil, beaderr.AlreadyInitialized(dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, beaderr.WriteError(dir).Wrap(err)
	}
	if err := jsonl.WriteAll(canonical, nil); err != nil {
		return nil, err
	}
	return Open(dir)
}

// Open attaches to an existing workspace at dir, loading its
// configuration. It fails with NotInitialized if the canonical file is
// absent.
func Open(dir string) (*Workspace, error) {
	canonical := filepath.Join(dir, canonicalFileName)
	if _, err := os.Stat(canonical); os.IsNotExist(err) {
		return nil, beaderr.NotInitialized(dir)
	}
	cfg, err := configfile.Load(dir)
	if err != nil {
		return nil, err
	}
	return &Workspace{
		Dir:       dir,
		Canonical: canonical,
		WAL:       filepath.Join(dir, walFileName),
		Config:    cfg,
		Log:       slog.Default(),
	}, nil
}

func (w *Workspace) load() (*store.Store, error) {
	s, rejected, err := store.Load(w.Canonical, w.WAL)
	if err != nil {
		return nil, err
	}
	if len(rejected) > 0 {
		manifest := filepath.Join(w.Dir, "load-rejects.jsonl")
		w.log().Warn("skipped corrupt records during load", "count", len(rejected), "manifest", manifest)
		_ = jsonl.SaveRejectionManifest(manifest, rejected)
	}
	return s, nil
}

// withWrite runs fn under the exclusive lock against a freshly loaded
// store, appends the resulting record to the WAL on success, and
// opportunistically compacts afterward. fn must not mutate disk state
// itself; all durability flows through the returned record. The lock is
// released before compaction is considered: compact.Compact acquires its
// own exclusive lock, and since flock(2) locks are scoped per open-file-
// description rather than per-process, a nested acquire while this
// function's own lock is still held would block against itself forever.
func (w *Workspace) withWrite(fn func(s *store.Store) (wal.Record, types.Issue, error)) (types.Issue, error) {
	lock, err := lockfile.Acquire(w.Dir)
	if err != nil {
		return types.Issue{}, err
	}

	s, err := w.load()
	if err != nil {
		lock.Release()
		return types.Issue{}, err
	}

	rec, result, err := fn(s)
	if err != nil {
		lock.Release()
		return types.Issue{}, err
	}
	if err := wal.Append(w.WAL, rec); err != nil {
		lock.Release()
		return types.Issue{}, err
	}

	lock.Release()
	w.maybeCompact()
	return result, nil
}

// maybeCompact evaluates the WAL threshold and compacts in place. Callers
// must have already released their own exclusive lock: compact.Compact
// acquires the lock itself.
func (w *Workspace) maybeCompact() {
	should, err := wal.ShouldCompact(w.WAL)
	if err != nil || !should {
		return
	}
	w.log().Info("compacting WAL into canonical file", "wal", w.WAL)
	if err := compact.Compact(compact.Paths{Dir: w.Dir, Canonical: w.Canonical, WAL: w.WAL}); err != nil {
		w.log().Warn("compaction failed", "error", err)
	}
}

// Add creates a new issue, assigning it an identifier and content
// fingerprint.
func (w *Workspace) Add(issue types.Issue, actor string) (types.Issue, error) {
	return w.withWrite(func(s *store.Store) (wal.Record, types.Issue, error) {
		now := time.Now().UTC()
		issue.ID = idgen.Generate(w.Config.ID.Prefix, s.Len())
		// A zero-value IssueType (no tag at all) is the signal that the
		// caller left both type and priority unset; Priority's own zero
		// value is a valid "critical" request and can't carry that signal
		// by itself.
		if issue.IssueType.String() == "" {
			issue.IssueType = types.ParseIssueType(w.Config.Defaults.IssueType)
			issue.Priority = w.Config.Defaults.Priority
		}
		issue.CreatedAt = now
		issue.UpdatedAt = now
		issue.Fingerprint = issue.ComputeFingerprint()
		if err := issue.Validate(); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if issue.ExternalRef != nil {
			if err := deps.ValidateExternalRef(*issue.ExternalRef); err != nil {
				return wal.Record{}, types.Issue{}, err
			}
		}
		if _, err := audit.Record(&issue, types.EventCreated, actor, nil, issue, now); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if err := s.Insert(issue); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		return wal.Record{Op: wal.OpAdd, TS: now.Unix(), ID: issue.ID, Data: &issue}, issue, nil
	})
}

// Get returns a single issue by id without acquiring the lock (a
// lock-free read per §5's shared-resource policy).
func (w *Workspace) Get(id string) (types.Issue, error) {
	s, err := w.load()
	if err != nil {
		return types.Issue{}, err
	}
	issue, ok := s.Get(id)
	if !ok {
		return types.Issue{}, beaderr.IssueNotFound(id)
	}
	return issue, nil
}

// Update replaces mutable fields on an existing issue.
func (w *Workspace) Update(id string, mutate func(*types.Issue), actor string) (types.Issue, error) {
	return w.withWrite(func(s *store.Store) (wal.Record, types.Issue, error) {
		issue, ok := s.Get(id)
		if !ok {
			return wal.Record{}, types.Issue{}, beaderr.IssueNotFound(id)
		}
		before := issue
		mutate(&issue)
		now := time.Now().UTC()
		issue.UpdatedAt = now
		issue.Fingerprint = issue.ComputeFingerprint()
		if err := issue.Validate(); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if issue.ExternalRef != nil {
			if err := deps.ValidateExternalRef(*issue.ExternalRef); err != nil {
				return wal.Record{}, types.Issue{}, err
			}
		}
		if _, err := audit.Record(&issue, types.EventUpdated, actor, before, issue, now); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if err := s.Update(issue); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		return wal.Record{Op: wal.OpUpdate, TS: now.Unix(), ID: id, Data: &issue}, issue, nil
	})
}

// Close transitions an issue to closed.
func (w *Workspace) Close(id, actor string) (types.Issue, error) {
	return w.withWrite(func(s *store.Store) (wal.Record, types.Issue, error) {
		issue, ok := s.Get(id)
		if !ok {
			return wal.Record{}, types.Issue{}, beaderr.IssueNotFound(id)
		}
		if issue.Status.Equal(types.StatusClosed) {
			return wal.Record{}, types.Issue{}, beaderr.AlreadyClosed(id)
		}
		before := issue
		now := time.Now().UTC()
		issue.Status = types.StatusClosed
		issue.ClosedAt = &now
		issue.UpdatedAt = now
		if _, err := audit.Record(&issue, types.EventClosed, actor, before, issue, now); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if err := s.Update(issue); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		return wal.Record{Op: wal.OpClose, TS: now.Unix(), ID: id}, issue, nil
	})
}

// Reopen transitions a closed issue back to open.
func (w *Workspace) Reopen(id, actor string) (types.Issue, error) {
	return w.withWrite(func(s *store.Store) (wal.Record, types.Issue, error) {
		issue, ok := s.Get(id)
		if !ok {
			return wal.Record{}, types.Issue{}, beaderr.IssueNotFound(id)
		}
		if !issue.Status.Equal(types.StatusClosed) {
			return wal.Record{}, types.Issue{}, beaderr.NotClosed(id)
		}
		before := issue
		now := time.Now().UTC()
		issue.Status = types.StatusOpen
		issue.ClosedAt = nil
		issue.UpdatedAt = now
		if _, err := audit.Record(&issue, types.EventReopened, actor, before, issue, now); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if err := s.Update(issue); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		return wal.Record{Op: wal.OpReopen, TS: now.Unix(), ID: id}, issue, nil
	})
}

// SetBlocked marks an issue blocked.
func (w *Workspace) SetBlocked(id, actor string) (types.Issue, error) {
	return w.withWrite(func(s *store.Store) (wal.Record, types.Issue, error) {
		issue, ok := s.Get(id)
		if !ok {
			return wal.Record{}, types.Issue{}, beaderr.IssueNotFound(id)
		}
		before := issue
		now := time.Now().UTC()
		issue.Status = types.StatusBlocked
		issue.UpdatedAt = now
		if _, err := audit.Record(&issue, types.EventStatusChanged, actor, before, issue, now); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if err := s.Update(issue); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		return wal.Record{Op: wal.OpSetBlocked, TS: now.Unix(), ID: id}, issue, nil
	})
}

// UnsetBlocked clears a blocked status back to open.
func (w *Workspace) UnsetBlocked(id, actor string) (types.Issue, error) {
	return w.withWrite(func(s *store.Store) (wal.Record, types.Issue, error) {
		issue, ok := s.Get(id)
		if !ok {
			return wal.Record{}, types.Issue{}, beaderr.IssueNotFound(id)
		}
		before := issue
		now := time.Now().UTC()
		issue.Status = types.StatusOpen
		issue.UpdatedAt = now
		if _, err := audit.Record(&issue, types.EventStatusChanged, actor, before, issue, now); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if err := s.Update(issue); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		return wal.Record{Op: wal.OpUnsetBlocked, TS: now.Unix(), ID: id}, issue, nil
	})
}

// Delete soft-deletes an issue, converting it to a tombstone.
func (w *Workspace) Delete(id, actor string) (types.Issue, error) {
	return w.withWrite(func(s *store.Store) (wal.Record, types.Issue, error) {
		before, ok := s.Get(id)
		if !ok {
			return wal.Record{}, types.Issue{}, beaderr.IssueNotFound(id)
		}
		now := time.Now().UTC()
		if err := s.Delete(id, now); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		issue, _ := s.Get(id)
		if _, err := audit.Record(&issue, types.EventDeleted, actor, before, issue, now); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if err := s.Update(issue); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		return wal.Record{Op: wal.OpDelete, TS: now.Unix(), ID: id}, issue, nil
	})
}

// AddDependency adds a dependency edge, rejecting self-dependencies and
// cycles for readiness-affecting kinds.
func (w *Workspace) AddDependency(from, to string, kind types.DependencyType, actor string) error {
	_, err := w.withWrite(func(s *store.Store) (wal.Record, types.Issue, error) {
		issues := s.All()
		g := deps.NewGraph(issues)
		now := time.Now().UTC()
		if err := g.AddEdge(from, to, kind, actor, now.Unix()); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		issue, ok := g.IssueByID(from)
		if !ok {
			return wal.Record{}, types.Issue{}, beaderr.IssueNotFound(from)
		}
		issue.UpdatedAt = now
		if _, err := audit.Record(&issue, types.EventDependencyAdded, actor, nil, issue.Dependencies, now); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if err := s.Update(issue); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		return wal.Record{Op: wal.OpUpdate, TS: now.Unix(), ID: from, Data: &issue}, issue, nil
	})
	return err
}

// RemoveDependency removes a dependency edge.
func (w *Workspace) RemoveDependency(from, to string, kind types.DependencyType, actor string) error {
	_, err := w.withWrite(func(s *store.Store) (wal.Record, types.Issue, error) {
		issues := s.All()
		g := deps.NewGraph(issues)
		now := time.Now().UTC()
		if err := g.RemoveEdge(from, to, kind); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		issue, ok := g.IssueByID(from)
		if !ok {
			return wal.Record{}, types.Issue{}, beaderr.IssueNotFound(from)
		}
		issue.UpdatedAt = now
		if _, err := audit.Record(&issue, types.EventDependencyRemoved, actor, nil, issue.Dependencies, now); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		if err := s.Update(issue); err != nil {
			return wal.Record{}, types.Issue{}, err
		}
		return wal.Record{Op: wal.OpUpdate, TS: now.Unix(), ID: from, Data: &issue}, issue, nil
	})
	return err
}

// List runs a filtered, lock-free read query.
func (w *Workspace) List(filter store.Filter) ([]types.Issue, error) {
	s, err := w.load()
	if err != nil {
		return nil, err
	}
	return s.List(filter), nil
}

// Ready returns the currently ready issues.
func (w *Workspace) Ready() ([]types.Issue, error) {
	s, err := w.load()
	if err != nil {
		return nil, err
	}
	return ready.Ready(s.All(), time.Now().UTC()), nil
}

// Blocked returns the currently blocked issues.
func (w *Workspace) Blocked() ([]types.Issue, error) {
	s, err := w.load()
	if err != nil {
		return nil, err
	}
	return ready.Blocked(s.All(), time.Now().UTC()), nil
}

// Stale returns issues untouched for at least the given number of days.
func (w *Workspace) Stale(days int) ([]types.Issue, error) {
	s, err := w.load()
	if err != nil {
		return nil, err
	}
	return ready.Stale(s.All(), time.Now().UTC(), days), nil
}

// CountBy tallies issues by the given grouping key.
func (w *Workspace) CountBy(group ready.Group) (map[string]int, error) {
	s, err := w.load()
	if err != nil {
		return nil, err
	}
	return ready.CountBy(s.All(), group), nil
}

// Tree returns a labeled dependency tree rooted at id.
func (w *Workspace) Tree(id string, maxDepth int) ([]deps.TreeNode, error) {
	s, err := w.load()
	if err != nil {
		return nil, err
	}
	return deps.NewGraph(s.All()).Tree(id, maxDepth), nil
}

// DetectCycles runs a global dependency-cycle scan.
func (w *Workspace) DetectCycles() ([][]string, error) {
	s, err := w.load()
	if err != nil {
		return nil, err
	}
	return deps.NewGraph(s.All()).DetectCycles(), nil
}

// Import merges a snapshot into the store under the exclusive lock (C9).
func (w *Workspace) Import(ctx context.Context, snapshotPath string, opts merge.Options) ([]merge.Result, error) {
	lock, err := lockfile.Acquire(w.Dir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	s, err := w.load()
	if err != nil {
		return nil, err
	}
	read, err := jsonl.ReadAll(snapshotPath, true)
	if err != nil {
		return nil, err
	}

	results, err := merge.Import(ctx, s, snapshotPath, read.Issues, opts)
	if err != nil {
		return nil, err
	}

	if err := jsonl.WriteAll(w.Canonical, s.All()); err != nil {
		return nil, err
	}
	// s already reflects the WAL replayed by w.load() above, so the merged
	// state just written to the canonical file folds in the WAL too; leaving
	// the WAL in place would replay those same operations a second time on
	// the next load.
	if err := wal.Truncate(w.WAL); err != nil {
		return nil, err
	}
	return results, nil
}

// Compact forces a WAL-into-canonical merge regardless of the size
// threshold.
func (w *Workspace) Compact() error {
	return compact.Compact(compact.Paths{Dir: w.Dir, Canonical: w.Canonical, WAL: w.WAL})
}

// Export writes the current fully-replayed state (canonical + WAL) to
// path as a standalone JSONL snapshot, without touching the workspace's
// own canonical file or WAL.
func (w *Workspace) Export(path string) error {
	s, err := w.load()
	if err != nil {
		return err
	}
	return jsonl.WriteAll(path, s.All())
}
