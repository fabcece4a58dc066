// Package jsonl implements canonical file I/O (C3): reading and writing
// the line-delimited JSON snapshot with atomic replace, plus conflict
// marker detection.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

// Rejected records one line that read_all skipped in lenient mode,
// grounding the rejection-manifest supplement (SPEC_FULL.md S4).
type Rejected struct {
	Line   int
	Raw    string
	Reason string
}

// ReadResult is the outcome of ReadAll: the successfully parsed issues
// plus any lines skipped under lenient policy.
type ReadResult struct {
	Issues   []types.Issue
	Rejected []Rejected
}

// ReadAll reads the entire canonical file at path, splitting on newlines
// and skipping blank lines. When lenient is false (the default for
// writes), any malformed line is a fatal *beaderr.Error. When lenient is
// true (user-triggered load, per §4.3), malformed lines are recorded in
// Rejected and parsing continues.
func ReadAll(path string, lenient bool) (ReadResult, error) {
	// #nosec G304 - path is the workspace-resolved canonical file
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ReadResult{}, nil
	}
	if err != nil {
		return ReadResult{}, beaderr.FileNotFound(path).Wrap(err)
	}
	return parse(data, lenient)
}

func parse(data []byte, lenient bool) (ReadResult, error) {
	var result ReadResult
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var issue types.Issue
		if err := json.Unmarshal([]byte(line), &issue); err != nil {
			if lenient {
				result.Rejected = append(result.Rejected, Rejected{Line: lineNum, Raw: line, Reason: err.Error()})
				continue
			}
			return ReadResult{}, beaderr.CorruptLine(lineNum, err.Error())
		}
		result.Issues = append(result.Issues, issue)
	}

	if err := scanner.Err(); err != nil {
		if lenient {
			result.Rejected = append(result.Rejected, Rejected{Line: lineNum + 1, Reason: err.Error()})
			return result, nil
		}
		return ReadResult{}, beaderr.CorruptLine(lineNum+1, err.Error())
	}

	return result, nil
}

// SaveRejectionManifest writes the skipped lines and reasons from a
// lenient ReadAll to path, grounding SPEC_FULL.md's S4 supplement.
func SaveRejectionManifest(path string, rejected []Rejected) error {
	if len(rejected) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, r := range rejected {
		entry := map[string]any{"line": r.Line, "raw": r.Raw, "reason": r.Reason}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling rejection entry: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return beaderr.WriteError(path).Wrap(err)
	}
	return nil
}
