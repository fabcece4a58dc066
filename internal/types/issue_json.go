package types

import "encoding/json"

// issueAlias avoids infinite recursion when Issue defines custom
// (Un)MarshalJSON while still wanting the struct-tag-driven encoding for
// every other field.
type issueAlias Issue

// MarshalJSON folds Unknown back into the top-level object so unrecognized
// fields captured on read survive a read-modify-write round trip.
func (i Issue) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(issueAlias(i))
	if err != nil {
		return nil, err
	}
	if len(i.Unknown) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range i.Unknown {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON captures any top-level field not in the known schema into
// Unknown, per the §6 cross-version coexistence requirement.
func (i *Issue) UnmarshalJSON(data []byte) error {
	var alias issueAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*i = Issue(alias)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := map[string]bool{
		"id": true, "fingerprint": true, "title": true, "description": true,
		"design": true, "acceptance_criteria": true, "notes": true, "status": true,
		"priority": true, "issue_type": true, "assignee": true, "owner": true,
		"creator": true, "created_at": true, "updated_at": true, "closed_at": true,
		"due_at": true, "defer_until": true, "external_ref": true, "source_system": true,
		"pinned": true, "is_template": true, "labels": true, "dependencies": true,
		"comments": true, "events": true,
	}
	var unknown map[string]json.RawMessage
	for k, v := range raw {
		if known[k] {
			continue
		}
		if unknown == nil {
			unknown = map[string]json.RawMessage{}
		}
		unknown[k] = v
	}
	i.Unknown = unknown
	return nil
}
