// Package lockfile implements the exclusive workspace lock (C4): a single
// whole-file advisory lock that every write path (WAL append, compaction,
// import) must hold for its duration. The lock file itself also carries the
// holding process's PID so a later acquirer can tell whether a refused lock
// is actually stale (SPEC_FULL.md S3).
package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
)

// FileName is the name of the lock file maintained inside a workspace directory.
const FileName = "beads.lock"

// Lock is a held exclusive lock. The zero value is not usable; obtain one
// via Acquire, TryAcquire or AcquireTimeout, and always call Release.
type Lock struct {
	file *os.File
	path string
}

// Acquire blocks until the exclusive lock on dir's lock file is obtained.
func Acquire(dir string) (*Lock, error) {
	path := lockPath(dir)
	f, err := openLockFile(path)
	if err != nil {
		return nil, err
	}
	if err := FlockExclusiveBlocking(f); err != nil {
		f.Close()
		return nil, beaderr.LockFailed(path).Wrap(err)
	}
	writeHolder(f)
	return &Lock{file: f, path: path}, nil
}

// TryAcquire attempts to obtain the lock without blocking. If another
// process holds it, it returns a *beaderr.Error whose Detail carries the
// holder's recorded PID when known, whether or not that process is alive.
func TryAcquire(dir string) (*Lock, error) {
	path := lockPath(dir)
	f, err := openLockFile(path)
	if err != nil {
		return nil, err
	}
	if err := flockExclusive(f); err != nil {
		f.Close()
		return nil, beaderr.LockFailed(path).WithDetail(holderDetail(path)).Wrap(err)
	}
	writeHolder(f)
	return &Lock{file: f, path: path}, nil
}

// AcquireTimeout polls TryAcquire with bounded exponential backoff until
// either the lock is obtained or timeout elapses, in which case it returns
// a *beaderr.Error built via beaderr.LockTimeout.
func AcquireTimeout(dir string, timeout time.Duration) (*Lock, error) {
	var acquired *Lock
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = timeout

	op := func() error {
		l, err := TryAcquire(dir)
		if err != nil {
			return err
		}
		acquired = l
		return nil
	}
	if err := backoff.Retry(op, b); err != nil {
		return nil, beaderr.LockTimeout(lockPath(dir)).Wrap(err)
	}
	return acquired, nil
}

// Release unlocks and closes the underlying lock file. Calling Release on
// a nil *Lock or one already released is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := FlockUnlock(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return beaderr.LockFailed(l.path).Wrap(unlockErr)
	}
	if closeErr != nil {
		return beaderr.LockFailed(l.path).Wrap(closeErr)
	}
	return nil
}

// StaleHolder reports whether dir's lock file records a PID that is no
// longer running, per SPEC_FULL.md S3. It never mutates or removes the
// lock file: the kernel already releases flock on process exit, so this is
// purely diagnostic information for a caller (e.g. a doctor report)
// deciding whether to surface a "lock looks stale" hint.
func StaleHolder(dir string) (stale bool, pid int, err error) {
	path := lockPath(dir)
	// #nosec G304 - path is the workspace-resolved lock file
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if convErr != nil {
		return false, 0, nil
	}
	return !isProcessRunning(pid), pid, nil
}

func lockPath(dir string) string {
	return filepath.Join(dir, FileName)
}

func openLockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, beaderr.LockFailed(path).Wrap(err)
	}
	return f, nil
}

func writeHolder(f *os.File) {
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	_ = f.Sync()
}

func holderDetail(path string) string {
	// #nosec G304 - path is the workspace-resolved lock file
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	pid := strings.TrimSpace(string(data))
	if pid == "" {
		return ""
	}
	return "held by pid " + pid
}
