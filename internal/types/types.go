// Package types defines the entity model: Issue and its embedded
// relations (Dependency, Comment, Event), with a JSON projection that
// matches the canonical file and WAL wire formats.
package types

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
	"github.com/hotschmoe/beads-zig-sub005/internal/idgen"
)

// Status is a tagged variant: a closed set of built-in cases plus an
// open-ended "custom" case carrying an arbitrary label. Unknown values
// read from the wire round-trip through the custom case verbatim.
type Status struct {
	tag    string
	custom string
}

var (
	StatusOpen        = Status{tag: "open"}
	StatusInProgress  = Status{tag: "in_progress"}
	StatusBlocked     = Status{tag: "blocked"}
	StatusDeferred    = Status{tag: "deferred"}
	StatusClosed      = Status{tag: "closed"}
	StatusTombstone   = Status{tag: "tombstone"}
	StatusPinned      = Status{tag: "pinned"}
)

var builtinStatuses = map[string]Status{
	"open":        StatusOpen,
	"in_progress": StatusInProgress,
	"blocked":     StatusBlocked,
	"deferred":    StatusDeferred,
	"closed":      StatusClosed,
	"tombstone":   StatusTombstone,
	"pinned":      StatusPinned,
}

// CustomStatus constructs the open-ended custom case carrying label.
func CustomStatus(label string) Status { return Status{tag: "custom", custom: label} }

// String returns the wire tag: the built-in name, or the custom label
// verbatim for the custom case.
func (s Status) String() string {
	if s.tag == "custom" {
		return s.custom
	}
	return s.tag
}

// IsCustom reports whether s is the open-ended custom case.
func (s Status) IsCustom() bool { return s.tag == "custom" }

// IsValid reports whether s is one of the built-in cases or a non-empty
// custom label.
func (s Status) IsValid() bool {
	if s.tag == "custom" {
		return s.custom != ""
	}
	_, ok := builtinStatuses[s.tag]
	return ok
}

func (s Status) Equal(o Status) bool { return s.String() == o.String() }

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if v, ok := builtinStatuses[str]; ok {
		*s = v
		return nil
	}
	*s = CustomStatus(str)
	return nil
}

// ParseStatus parses a wire string into a Status, preferring the
// built-in case and falling back to custom.
func ParseStatus(s string) Status {
	if v, ok := builtinStatuses[s]; ok {
		return v
	}
	return CustomStatus(s)
}

// IssueType is a tagged variant analogous to Status.
type IssueType struct {
	tag    string
	custom string
}

var (
	TypeTask     = IssueType{tag: "task"}
	TypeBug      = IssueType{tag: "bug"}
	TypeFeature  = IssueType{tag: "feature"}
	TypeEpic     = IssueType{tag: "epic"}
	TypeChore    = IssueType{tag: "chore"}
	TypeDocs     = IssueType{tag: "docs"}
	TypeQuestion = IssueType{tag: "question"}
)

var builtinIssueTypes = map[string]IssueType{
	"task":     TypeTask,
	"bug":      TypeBug,
	"feature":  TypeFeature,
	"epic":     TypeEpic,
	"chore":    TypeChore,
	"docs":     TypeDocs,
	"question": TypeQuestion,
}

func CustomIssueType(label string) IssueType { return IssueType{tag: "custom", custom: label} }

func (t IssueType) String() string {
	if t.tag == "custom" {
		return t.custom
	}
	return t.tag
}

func (t IssueType) IsCustom() bool { return t.tag == "custom" }

func (t IssueType) IsValid() bool {
	if t.tag == "custom" {
		return t.custom != ""
	}
	_, ok := builtinIssueTypes[t.tag]
	return ok
}

func (t IssueType) Equal(o IssueType) bool { return t.String() == o.String() }

func (t IssueType) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *IssueType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if v, ok := builtinIssueTypes[str]; ok {
		*t = v
		return nil
	}
	*t = CustomIssueType(str)
	return nil
}

func ParseIssueType(s string) IssueType {
	if v, ok := builtinIssueTypes[s]; ok {
		return v
	}
	return CustomIssueType(s)
}

// DependencyType tags the kind of a directed edge between two issues.
// Only DepBlocks and DepParentChild participate in cycle prevention; the
// ready/blocked evaluator looks at DepBlocks edges only. The rest are
// informational.
type DependencyType struct {
	tag    string
	custom string
}

var (
	DepBlocks            = DependencyType{tag: "blocks"}
	DepParentChild       = DependencyType{tag: "parent_child"}
	DepConditionalBlocks = DependencyType{tag: "conditional_blocks"}
	DepWaitsFor          = DependencyType{tag: "waits_for"}
	DepRelated           = DependencyType{tag: "related"}
	DepDiscoveredFrom    = DependencyType{tag: "discovered_from"}
	DepRepliesTo         = DependencyType{tag: "replies_to"}
	DepRelatesTo         = DependencyType{tag: "relates_to"}
	DepDuplicates        = DependencyType{tag: "duplicates"}
	DepSupersedes        = DependencyType{tag: "supersedes"}
	DepCausedBy          = DependencyType{tag: "caused_by"}
)

var builtinDependencyTypes = map[string]DependencyType{
	"blocks":             DepBlocks,
	"parent_child":       DepParentChild,
	"conditional_blocks": DepConditionalBlocks,
	"waits_for":          DepWaitsFor,
	"related":            DepRelated,
	"discovered_from":    DepDiscoveredFrom,
	"replies_to":         DepRepliesTo,
	"relates_to":         DepRelatesTo,
	"duplicates":         DepDuplicates,
	"supersedes":         DepSupersedes,
	"caused_by":          DepCausedBy,
}

func CustomDependencyType(label string) DependencyType {
	return DependencyType{tag: "custom", custom: label}
}

func (d DependencyType) String() string {
	if d.tag == "custom" {
		return d.custom
	}
	return d.tag
}

func (d DependencyType) IsValid() bool {
	if d.tag == "custom" {
		return d.custom != ""
	}
	_, ok := builtinDependencyTypes[d.tag]
	return ok
}

// AffectsReadiness reports whether this edge kind participates in cycle
// prevention (only blocks/parent_child do). The ready/blocked evaluator
// does not call it; it considers blocks edges only.
func (d DependencyType) AffectsReadiness() bool {
	return d.tag == "blocks" || d.tag == "parent_child"
}

func (d DependencyType) Equal(o DependencyType) bool { return d.String() == o.String() }

func (d DependencyType) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *DependencyType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if v, ok := builtinDependencyTypes[str]; ok {
		*d = v
		return nil
	}
	*d = CustomDependencyType(str)
	return nil
}

func ParseDependencyType(s string) DependencyType {
	if v, ok := builtinDependencyTypes[s]; ok {
		return v
	}
	return CustomDependencyType(s)
}

// Dependency is a directed edge (From depends on / relates to To) owned by
// the From issue's embedded dependency list.
type Dependency struct {
	From      string         `json:"from"`
	To        string         `json:"to"`
	Type      DependencyType `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	CreatedBy string         `json:"created_by,omitempty"`
}

// Key identifies a Dependency for embedded-list union during merge.
func (d Dependency) Key() string {
	return d.From + "\x00" + d.To + "\x00" + d.Type.String()
}

// Comment is a monotonically-numbered-per-issue note.
type Comment struct {
	ID        int       `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType tags the kind of audit event recorded on every mutation.
type EventType string

const (
	EventCreated           EventType = "created"
	EventUpdated           EventType = "updated"
	EventStatusChanged     EventType = "status_changed"
	EventCommented         EventType = "commented"
	EventClosed            EventType = "closed"
	EventReopened          EventType = "reopened"
	EventDeferred          EventType = "deferred"
	EventUndeferred        EventType = "undeferred"
	EventDeleted           EventType = "deleted"
	EventDependencyAdded   EventType = "dependency_added"
	EventDependencyRemoved EventType = "dependency_removed"
	EventLabelAdded        EventType = "label_added"
	EventLabelRemoved      EventType = "label_removed"
)

// Event is an append-only audit record. Events are owned by the issue
// they describe; IDs are monotonic within that issue (see internal/audit).
type Event struct {
	ID        int             `json:"id"`
	Type      EventType       `json:"type"`
	Actor     string          `json:"actor"`
	OldValue  json.RawMessage `json:"old_value,omitempty"`
	NewValue  json.RawMessage `json:"new_value,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Issue is the principal entity of the store.
type Issue struct {
	ID                 string    `json:"id"`
	Fingerprint        string    `json:"fingerprint"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Design             string    `json:"design,omitempty"`
	AcceptanceCriteria string    `json:"acceptance_criteria,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	Status             Status    `json:"status"`
	Priority           int       `json:"priority"`
	IssueType          IssueType `json:"issue_type"`

	Assignee *string `json:"assignee,omitempty"`
	Owner    *string `json:"owner,omitempty"`
	Creator  *string `json:"creator,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	DeferUntil  *time.Time `json:"defer_until,omitempty"`

	ExternalRef  *string `json:"external_ref,omitempty"`
	SourceSystem *string `json:"source_system,omitempty"`

	Pinned     bool `json:"pinned"`
	IsTemplate bool `json:"is_template"`

	Labels       []string     `json:"labels,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	Comments     []Comment    `json:"comments,omitempty"`
	Events       []Event      `json:"events,omitempty"`

	// Unknown preserves top-level fields this version of the engine does
	// not recognize, so read-modify-write round-trips tolerate
	// cross-version coexistence per §6.
	Unknown map[string]json.RawMessage `json:"-"`
}

func optStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ComputeFingerprint computes the content fingerprint per §4.1/C1: a pure
// function of content fields only, excluding identifier and timestamps.
func (i *Issue) ComputeFingerprint() string {
	return idgen.ContentFingerprint(idgen.ContentFields{
		Title:              i.Title,
		Description:        i.Description,
		Design:             i.Design,
		AcceptanceCriteria: i.AcceptanceCriteria,
		Notes:              i.Notes,
		Status:             i.Status.String(),
		Priority:           fmt.Sprintf("%d", i.Priority),
		IssueType:          i.IssueType.String(),
		Assignee:           optStr(i.Assignee),
		Owner:              optStr(i.Owner),
		Creator:            optStr(i.Creator),
		ExternalRef:        optStr(i.ExternalRef),
		SourceSystem:       optStr(i.SourceSystem),
		Pinned:             i.Pinned,
		IsTemplate:         i.IsTemplate,
	})
}

// IsTombstone reports whether this issue has been soft-deleted.
func (i *Issue) IsTombstone() bool { return i.Status.Equal(StatusTombstone) }

// TombstoneGracePeriod is the clock-skew grace window a tombstone must
// survive before IsExpiredTombstone considers it eligible for physical
// removal by an external GC pass. The core never deletes a tombstone
// itself (I1); this predicate only exposes the expiry check.
const TombstoneGracePeriod = 30 * 24 * time.Hour

// IsExpiredTombstone reports whether this is a tombstone whose
// UpdatedAt (the soft-delete time) is older than TombstoneGracePeriod
// relative to now.
func (i *Issue) IsExpiredTombstone(now time.Time) bool {
	return i.IsTombstone() && now.Sub(i.UpdatedAt) > TombstoneGracePeriod
}

// Validate enforces the structural invariants from §3: title length,
// priority range, valid status/type tags, and closed_at consistency.
func (i *Issue) Validate() error {
	if i.Title == "" {
		return beaderr.TitleTooLong(i.ID, 0).WithDetail("title is required")
	}
	if n := utf8.RuneCountInString(i.Title); n > 500 {
		return beaderr.TitleTooLong(i.ID, n)
	}
	if i.Priority < 0 || i.Priority > 4 {
		return beaderr.InvalidPriority(i.Priority)
	}
	if !i.Status.IsValid() {
		return beaderr.InvalidStatus(i.Status.String())
	}
	if !i.IssueType.IsValid() {
		return beaderr.InvalidStatus(i.IssueType.String()).WithDetail("invalid issue type")
	}
	isClosed := i.Status.Equal(StatusClosed)
	if isClosed && i.ClosedAt == nil {
		return beaderr.InvalidStatus(i.Status.String()).WithDetail("closed issues must have closed_at timestamp")
	}
	if !isClosed && i.ClosedAt != nil {
		return beaderr.InvalidStatus(i.Status.String()).WithDetail("non-closed issues cannot have closed_at timestamp")
	}
	return nil
}

// IssueFilter is the fixed set of recognized list() filters (§4.6). A nil
// pointer/slice field means "no constraint on this dimension".
type IssueFilter struct {
	StatusSet              []Status
	PriorityMin            *int
	PriorityMax            *int
	TypeSet                []IssueType
	Assignee               *string
	Owner                  *string
	LabelAnyOf             []string
	LabelAllOf             []string
	TextSubstring          string
	IncludeTombstones      bool
	IncludeDeferredBefore  *time.Time
}
