// File: internal/knowledge/knowledge.go
// Description: Persistent field-fingerprint-keyed learning cache. Every
// execution result folds back in here, so later runs replay what already
// proved useful instead of regenerating it.

package knowledge

import (
	"errors"

	"github.com/xkilldash9x/formscout/api/schemas"
)

// ErrNotFound is returned by Find when no entry exists for a fingerprint.
var ErrNotFound = errors.New("no knowledge for field")

// metaOf extracts the persisted metadata echo from a descriptor.
func metaOf(d schemas.ElementDescriptor) schemas.FieldMeta {
	return schemas.FieldMeta{
		Tag:         d.Tag,
		Name:        d.Name,
		Role:        d.Role,
		Placeholder: d.Placeholder,
	}
}

// appendCase adds tc to cases unless a case with the same payload exists.
// Returns the (possibly unchanged) slice.
func appendCase(cases []schemas.TestCase, tc schemas.TestCase) []schemas.TestCase {
	for _, c := range cases {
		if c.Payload == tc.Payload {
			return cases
		}
	}
	return append(cases, tc)
}

// mergeCases appends every new-payload case from incoming onto existing.
func mergeCases(existing, incoming []schemas.TestCase) []schemas.TestCase {
	for _, tc := range incoming {
		existing = appendCase(existing, tc)
	}
	return existing
}

// applyResult folds one execution result into an entry's counters.
func applyResult(entry *schemas.KnowledgeEntry, res schemas.ExecutionResult) {
	entry.Stats.Total++
	if res.Status == schemas.StatusApplied {
		entry.Stats.Success++
	} else {
		entry.Stats.Fail++
	}
}
