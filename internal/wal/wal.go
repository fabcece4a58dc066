// Package wal implements the write-ahead log (C5): an append-only journal
// of operation records that absorbs writes between compactions. Every
// append happens under the exclusive workspace lock; replay is safe to run
// lock-free against a torn trailing line.
package wal

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

// Op names a write-ahead log operation kind.
type Op string

const (
	OpAdd          Op = "add"
	OpUpdate       Op = "update"
	OpClose        Op = "close"
	OpReopen       Op = "reopen"
	OpDelete       Op = "delete"
	OpSetBlocked   Op = "set_blocked"
	OpUnsetBlocked Op = "unset_blocked"
)

// Record is one line of the write-ahead log: {op, ts, id, data}. Data
// carries the full issue projection for add/update and is nil otherwise.
type Record struct {
	Op   Op           `json:"op"`
	TS   int64        `json:"ts"`
	ID   string       `json:"id"`
	Data *types.Issue `json:"data"`
}

// Threshold constants that trigger compaction (§4.5); fixed, not
// runtime-tunable.
const (
	MaxOps   = 100
	MaxBytes = 100 * 1024
)

// Append writes one record to the WAL file at path, flushing and fsyncing
// before returning. Callers must hold the exclusive workspace lock.
func Append(path string, rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return beaderr.WriteError(path).Wrap(err)
	}
	line = append(line, '\n')

	// #nosec G304 - path is the workspace-resolved WAL file
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return beaderr.WriteError(path).Wrap(err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return beaderr.WriteError(path).Wrap(err)
	}
	if err := f.Sync(); err != nil {
		return beaderr.WriteError(path).Wrap(err)
	}
	return nil
}

// ReadResult is the outcome of reading a WAL file: the in-order records
// plus whether a torn trailing line was discarded.
type ReadResult struct {
	Records     []Record
	TornTailLen int
}

// ReadAll reads path line by line, parsing each as a Record. A torn
// trailing line (missing a final newline, or a parse failure on the last
// line only) is discarded per the "at-most-one-dropped-tail" invariant;
// every earlier line is authoritative and a parse failure there is fatal.
// A missing file yields an empty result.
func ReadAll(path string) (ReadResult, error) {
	// #nosec G304 - path is the workspace-resolved WAL file
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ReadResult{}, nil
	}
	if err != nil {
		return ReadResult{}, beaderr.WALCorrupted(path, err.Error())
	}
	return parse(path, data)
}

func parse(path string, data []byte) (ReadResult, error) {
	if len(data) == 0 {
		return ReadResult{}, nil
	}

	trailingNewline := data[len(data)-1] == '\n'
	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))

	var result ReadResult
	for i, raw := range lines {
		isLast := i == len(lines)-1
		if len(raw) == 0 {
			continue
		}
		if isLast && !trailingNewline {
			// Torn trailing line: a write was interrupted before the
			// final newline reached disk. Discard it, keep everything
			// before it.
			result.TornTailLen = len(raw)
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			if isLast {
				result.TornTailLen = len(raw)
				continue
			}
			return ReadResult{}, beaderr.WALCorrupted(path, err.Error())
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// Truncate empties the WAL file at path and fsyncs it. Callers must hold
// the exclusive workspace lock; this is step 4 of compact() (§4.8) and
// must happen before the lock is released.
func Truncate(path string) error {
	// #nosec G304 - path is the workspace-resolved WAL file
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return beaderr.WriteError(path).Wrap(err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return beaderr.WriteError(path).Wrap(err)
	}
	return nil
}

// ShouldCompact reports whether the WAL at path has grown past the
// compaction trigger thresholds, counted by both operation count and byte
// size.
func ShouldCompact(path string) (bool, error) {
	// #nosec G304 - path is the workspace-resolved WAL file
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, beaderr.WALCorrupted(path, err.Error())
	}
	if info.Size() >= MaxBytes {
		return true, nil
	}

	result, err := ReadAll(path)
	if err != nil {
		return false, err
	}
	return len(result.Records) >= MaxOps, nil
}
