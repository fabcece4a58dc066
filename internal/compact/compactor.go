// Package compact implements the compactor (C8): merging the write-ahead
// log into the canonical file and truncating the WAL, atomically and
// under the exclusive workspace lock.
package compact

import (
	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
	"github.com/hotschmoe/beads-zig-sub005/internal/jsonl"
	"github.com/hotschmoe/beads-zig-sub005/internal/lockfile"
	"github.com/hotschmoe/beads-zig-sub005/internal/store"
	"github.com/hotschmoe/beads-zig-sub005/internal/wal"
)

// Paths names the on-disk artifacts a Compact call operates on.
type Paths struct {
	Dir       string // workspace directory holding the lock file
	Canonical string
	WAL       string
}

// Compact performs the single compact(P, WAL) operation of §4.8:
//  1. acquire the exclusive lock;
//  2. read the canonical file and WAL, building in-memory state;
//  3. write the new canonical file via the atomic temp+rename protocol;
//  4. truncate the WAL to zero length and fsync;
//  5. release the lock.
//
// Failure before step 3 leaves the previous canonical and WAL intact.
// Failure between steps 3 and 4 is fatal for the calling process: the
// rename already committed the merged state, so a truncation failure must
// not be silently ignored, since replaying the stale WAL on top of the new
// canonical is only safe if every operation in it is idempotent, which
// add and close are not.
func Compact(p Paths) error {
	lock, err := lockfile.Acquire(p.Dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	s, _, err := store.Load(p.Canonical, p.WAL)
	if err != nil {
		return err
	}

	if err := jsonl.WriteAll(p.Canonical, s.All()); err != nil {
		return beaderr.CompactionFailed(err.Error())
	}

	if err := wal.Truncate(p.WAL); err != nil {
		// Canonical already reflects merged state; an untruncated WAL
		// would be replayed non-idempotently on next load. This must
		// surface as fatal rather than be swallowed.
		return beaderr.CompactionFailed("rename committed but WAL truncation failed: " + err.Error())
	}

	return nil
}
