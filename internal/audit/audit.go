// Package audit implements the audit recorder (C11): every mutating
// operation appends an Event to the affected issue's embedded events
// list, with identifiers monotonic within that issue.
package audit

import (
	"encoding/json"
	"time"

	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

// Record appends a new Event of the given kind to issue, stamping actor,
// before/after JSON, and timestamp. It returns the next monotonic event
// id assigned.
func Record(issue *types.Issue, kind types.EventType, actor string, before, after interface{}, ts time.Time) (int, error) {
	var beforeRaw, afterRaw json.RawMessage
	var err error
	if before != nil {
		if beforeRaw, err = json.Marshal(before); err != nil {
			return 0, err
		}
	}
	if after != nil {
		if afterRaw, err = json.Marshal(after); err != nil {
			return 0, err
		}
	}

	id := nextEventID(issue.Events)
	issue.Events = append(issue.Events, types.Event{
		ID:        id,
		Type:      kind,
		Actor:     actor,
		OldValue:  beforeRaw,
		NewValue:  afterRaw,
		CreatedAt: ts,
	})
	return id, nil
}

func nextEventID(events []types.Event) int {
	max := 0
	for _, e := range events {
		if e.ID > max {
			max = e.ID
		}
	}
	return max + 1
}
