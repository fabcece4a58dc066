package jsonl

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

func sampleIssue(id string) types.Issue {
	now := time.Now().UTC().Truncate(time.Second)
	return types.Issue{
		ID:        id,
		Title:     "Issue " + id,
		Status:    types.StatusOpen,
		Priority:  2,
		IssueType: types.TypeTask,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWriteAllThenReadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beads.jsonl")

	issues := []types.Issue{sampleIssue("bd-b"), sampleIssue("bd-a")}
	if err := WriteAll(path, issues); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	result, err := ReadAll(path, false)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(result.Issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(result.Issues))
	}
	// WriteAll sorts by identifier.
	if result.Issues[0].ID != "bd-a" || result.Issues[1].ID != "bd-b" {
		t.Fatalf("issues not sorted by id: %v, %v", result.Issues[0].ID, result.Issues[1].ID)
	}
}

func TestReadAllMissingFileIsEmpty(t *testing.T) {
	result, err := ReadAll(filepath.Join(t.TempDir(), "nope.jsonl"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Issues) != 0 {
		t.Fatalf("expected no issues for missing file")
	}
}

func TestReadAllStrictRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beads.jsonl")
	writeRaw(t, path, "not json\n")

	if _, err := ReadAll(path, false); err == nil {
		t.Fatalf("expected error in strict mode")
	}
}

func TestReadAllLenientSkipsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beads.jsonl")
	good, _ := WriteAllToBytes([]types.Issue{sampleIssue("bd-a")})
	writeRaw(t, path, string(good)+"not json\n")

	result, err := ReadAll(path, true)
	if err != nil {
		t.Fatalf("unexpected error in lenient mode: %v", err)
	}
	if len(result.Issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(result.Issues))
	}
	if len(result.Rejected) != 1 {
		t.Fatalf("got %d rejected lines, want 1", len(result.Rejected))
	}
}

func TestScanConflictMarkers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beads.jsonl")
	writeRaw(t, path, "<<<<<<< HEAD\n{}\n=======\n{}\n>>>>>>> branch\n")

	found, err := ScanConflictMarkers(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("expected conflict markers to be detected")
	}
}

func TestScanConflictMarkersCleanFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beads.jsonl")
	if err := WriteAll(path, []types.Issue{sampleIssue("bd-a")}); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	found, err := ScanConflictMarkers(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("did not expect conflict markers")
	}
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("os.WriteFile failed: %v", err)
	}
}
