package position

import (
	"fmt"
	"sort"
)

// DraftIndexBase is the first external number handed to session-local targets.
// Persisted indices stay below it.
const DraftIndexBase = 1000

// Origin tells where a target identifier comes from.
type Origin uint8

const (
	// Persisted targets exist (or will exist) under this index in the backend position.
	Persisted Origin = iota + 1
	// Draft targets were added during the current edit session only.
	Draft
)

func (o Origin) String() string {
	switch o {
	case Persisted:
		return "persisted"
	case Draft:
		return "draft"
	}
	return "unknown"
}

// TargetID identifies a target inside a group. Build it with PersistedID or DraftID.
type TargetID struct {
	origin Origin
	n      int
}

// PersistedID addresses the backend index i (1-based).
func PersistedID(i int) TargetID { return TargetID{origin: Persisted, n: i} }

// DraftID addresses the j-th locally added target (1-based).
func DraftID(j int) TargetID { return TargetID{origin: Draft, n: j} }

func (id TargetID) Origin() Origin { return id.origin }

// Index is the backend index for persisted ids, the local sequence for drafts.
func (id TargetID) Index() int { return id.n }

func (id TargetID) IsZero() bool { return id.origin == 0 }

// External returns the published number used in composed field names and payloads.
func (id TargetID) External() int {
	if id.origin == Draft {
		return DraftIndexBase + id.n - 1
	}
	return id.n
}

func (id TargetID) String() string {
	return fmt.Sprintf("%s(%d)", id.origin, id.n)
}

// TargetIDFromExternal maps a published number back to its tagged form.
func TargetIDFromExternal(n int) (TargetID, error) {
	switch {
	case n <= 0:
		return TargetID{}, fmt.Errorf("target number %d out of range", n)
	case n < DraftIndexBase:
		return PersistedID(n), nil
	default:
		return DraftID(n - DraftIndexBase + 1), nil
	}
}

// Less orders persisted ids before drafts, then by index.
func (id TargetID) Less(other TargetID) bool {
	if id.origin != other.origin {
		return id.origin < other.origin
	}
	return id.n < other.n
}

// SortTargetIDs sorts in place using Less.
func SortTargetIDs(ids []TargetID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
