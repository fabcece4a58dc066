// Package beads provides the public API for extending the tracker with
// custom orchestration: opening a workspace, and the core types needed to
// work with its issues programmatically.
//
// Most extensions should drive a workspace directly through this package
// rather than reading the on-disk JSONL files themselves.
package beads

import (
	"github.com/hotschmoe/beads-zig-sub005/internal/engine"
	"github.com/hotschmoe/beads-zig-sub005/internal/store"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

// Core types for working with issues.
type (
	Issue          = types.Issue
	Status         = types.Status
	IssueType      = types.IssueType
	DependencyType = types.DependencyType
	Dependency     = types.Dependency
	Comment        = types.Comment
	Event          = types.Event
	Filter         = store.Filter
)

// Status constants.
var (
	StatusOpen       = types.StatusOpen
	StatusInProgress = types.StatusInProgress
	StatusBlocked    = types.StatusBlocked
	StatusDeferred   = types.StatusDeferred
	StatusClosed     = types.StatusClosed
	StatusTombstone  = types.StatusTombstone
	StatusPinned     = types.StatusPinned
)

// IssueType constants.
var (
	TypeTask     = types.TypeTask
	TypeBug      = types.TypeBug
	TypeFeature  = types.TypeFeature
	TypeEpic     = types.TypeEpic
	TypeChore    = types.TypeChore
	TypeDocs     = types.TypeDocs
	TypeQuestion = types.TypeQuestion
)

// DependencyType constants.
var (
	DepBlocks         = types.DepBlocks
	DepParentChild    = types.DepParentChild
	DepRelated        = types.DepRelated
	DepDiscoveredFrom = types.DepDiscoveredFrom
)

// Workspace is a handle to a tracker directory on disk.
type Workspace = engine.Workspace

// Init creates a new workspace at dir.
func Init(dir string) (*Workspace, error) {
	return engine.Init(dir)
}

// Open attaches to an existing workspace at dir.
func Open(dir string) (*Workspace, error) {
	return engine.Open(dir)
}
