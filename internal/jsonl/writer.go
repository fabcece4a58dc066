package jsonl

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

// WriteAll serializes issues, one JSON object per line sorted by
// identifier, and atomically replaces the file at path: write to a temp
// file in the same directory, fsync the temp file, rename over path,
// then fsync the containing directory (§4.3).
func WriteAll(path string, issues []types.Issue) error {
	buf, err := WriteAllToBytes(issues)
	if err != nil {
		return beaderr.WriteError(path).Wrap(err)
	}
	return atomicWrite(path, buf)
}

// WriteAllToBytes renders issues into the canonical line-delimited JSON
// form (sorted by identifier) without touching the filesystem.
func WriteAllToBytes(issues []types.Issue) ([]byte, error) {
	sorted := make([]types.Issue, len(issues))
	copy(sorted, issues)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var buf []byte
	for _, issue := range sorted {
		line, err := json.Marshal(issue)
		if err != nil {
			return nil, err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return buf, nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return beaderr.WriteError(path).Wrap(err)
	}
	tmp := path + ".tmp." + hex.EncodeToString(suffix)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return beaderr.WriteError(tmp).Wrap(err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return beaderr.WriteError(tmp).Wrap(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return beaderr.WriteError(tmp).Wrap(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return beaderr.WriteError(tmp).Wrap(err)
	}

	// Rename is atomic on POSIX filesystems. On Windows, os.Rename uses
	// MoveFileEx with MOVEFILE_REPLACE_EXISTING via the runtime, giving
	// the platform's atomic-replace primitive called for in §4.3/§9.
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return beaderr.AtomicRenameFailed(path).Wrap(err)
	}

	if dirFile, err := os.Open(dir); err == nil {
		dirFile.Sync()
		dirFile.Close()
	}

	return nil
}
