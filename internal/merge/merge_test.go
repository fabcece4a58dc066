package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotschmoe/beads-zig-sub005/internal/jsonl"
	"github.com/hotschmoe/beads-zig-sub005/internal/store"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

func seedStore(t *testing.T, issues ...types.Issue) *store.Store {
	t.Helper()
	s := store.New()
	for _, i := range issues {
		if i.Fingerprint == "" {
			i.Fingerprint = i.ComputeFingerprint()
		}
		require.NoError(t, s.Insert(i))
	}
	return s
}

func emptySnapshotPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.jsonl")
	require.NoError(t, jsonl.WriteAll(path, nil))
	return path
}

func TestImportMatchesByExternalRef(t *testing.T) {
	ref := "external:proj:cap"
	existing := types.Issue{ID: "bd-a", Title: "old", Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask,
		ExternalRef: &ref, UpdatedAt: time.Unix(100, 0).UTC(), CreatedAt: time.Unix(100, 0).UTC()}
	s := seedStore(t, existing)

	incoming := types.Issue{ID: "bd-z", Title: "new", Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask,
		ExternalRef: &ref, UpdatedAt: time.Unix(200, 0).UTC(), CreatedAt: time.Unix(200, 0).UTC()}

	results, err := Import(context.Background(), s, emptySnapshotPath(t), []types.Issue{incoming}, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, MatchExternalRef, results[0].Match)
	assert.Equal(t, "bd-a", results[0].ID)

	merged, ok := s.Get("bd-a")
	require.True(t, ok)
	assert.Equal(t, "new", merged.Title, "expected newer record to win")
}

func TestImportMatchesByFingerprintThenIdentifier(t *testing.T) {
	existing := types.Issue{ID: "bd-a", Title: "same content", Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask,
		UpdatedAt: time.Unix(100, 0).UTC(), CreatedAt: time.Unix(100, 0).UTC()}
	s := seedStore(t, existing)

	// Different id, same content -> matches by fingerprint.
	incoming := types.Issue{ID: "bd-other", Title: "same content", Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask,
		UpdatedAt: time.Unix(200, 0).UTC(), CreatedAt: time.Unix(100, 0).UTC()}

	results, err := Import(context.Background(), s, emptySnapshotPath(t), []types.Issue{incoming}, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, MatchFingerprint, results[0].Match)
	assert.Equal(t, "bd-a", results[0].ID)
}

func TestImportInsertsNewRecord(t *testing.T) {
	s := seedStore(t)
	incoming := types.Issue{ID: "bd-a", Title: "brand new", Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask,
		UpdatedAt: time.Now().UTC(), CreatedAt: time.Now().UTC()}

	results, err := Import(context.Background(), s, emptySnapshotPath(t), []types.Issue{incoming}, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, MatchNew, results[0].Match)
	assert.Equal(t, 1, s.Len())
}

func TestImportUnionsLabelsAndDependencies(t *testing.T) {
	existing := types.Issue{ID: "bd-a", Title: "t", Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask,
		Labels: []string{"urgent"}, UpdatedAt: time.Unix(100, 0).UTC(), CreatedAt: time.Unix(100, 0).UTC()}
	s := seedStore(t, existing)

	incoming := types.Issue{ID: "bd-a", Title: "t updated", Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask,
		Labels: []string{"urgent", "bug"}, UpdatedAt: time.Unix(200, 0).UTC(), CreatedAt: time.Unix(100, 0).UTC()}

	_, err := Import(context.Background(), s, emptySnapshotPath(t), []types.Issue{incoming}, Options{})
	require.NoError(t, err)

	merged, ok := s.Get("bd-a")
	require.True(t, ok)
	assert.Len(t, merged.Labels, 2, "expected union of labels")
}

func TestImportRejectsOverwriteEmptyGuard(t *testing.T) {
	existing := types.Issue{ID: "bd-a", Title: "t", Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask,
		UpdatedAt: time.Now().UTC(), CreatedAt: time.Now().UTC()}
	s := seedStore(t, existing)

	_, err := Import(context.Background(), s, emptySnapshotPath(t), nil, Options{OverwriteEmptyGuard: true})
	assert.Error(t, err, "expected WouldOverwriteData error")
}

func TestImportRejectsConflictMarkers(t *testing.T) {
	s := seedStore(t)
	path := filepath.Join(t.TempDir(), "snapshot.jsonl")
	writeConflictFile(t, path)

	_, err := Import(context.Background(), s, path, nil, Options{})
	assert.Error(t, err, "expected MergeConflictDetected error")
}

func writeConflictFile(t *testing.T, path string) {
	t.Helper()
	content := []byte("<<<<<<< HEAD\n{}\n=======\n{}\n>>>>>>> branch\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
}
