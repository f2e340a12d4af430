package regioncdc

import "fmt"

// NewEntriesEvent wraps rows decoded from one triggering batch or scan into
// an Event carrying the Entries variant.
func NewEntriesEvent(regionID, index uint64, rows []Row) Event {
	return Event{RegionId: regionID, Index: index, Entries: &Entries{Rows: rows}}
}

// NewResolvedTsEvent wraps a resolved timestamp into its Event variant.
func NewResolvedTsEvent(regionID uint64, ts uint64) Event {
	return Event{RegionId: regionID, HasResolvedTs: true, ResolvedTs: ts}
}

// NewErrorEvent wraps a classified RegionError into its Event variant.
func NewErrorEvent(regionID uint64, err *RegionError) Event {
	return Event{RegionId: regionID, Error: err}
}

// Variant returns a short tag naming which oneof arm is populated, useful for
// logging and test assertions.
func (e *Event) Variant() string {
	switch {
	case e.Entries != nil:
		return "Entries"
	case e.HasResolvedTs:
		return "ResolvedTs"
	case e.Error != nil:
		return "Error"
	case e.Admin != nil:
		return "Admin"
	default:
		return "Empty"
	}
}

// Error implements the standard error interface so a *RegionError can be
// returned and compared like any other Go error where convenient.
func (e *RegionError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.NotLeader != nil:
		return fmt.Sprintf("not leader of region %d", e.NotLeader.RegionId)
	case e.RegionNotFound != nil:
		return fmt.Sprintf("region %d not found", e.RegionNotFound.RegionId)
	case e.EpochNotMatch != nil:
		return fmt.Sprintf("epoch not match, current regions: %v", e.EpochNotMatch.CurrentRegions)
	default:
		return "unknown region error"
	}
}
