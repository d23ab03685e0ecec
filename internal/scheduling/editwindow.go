package scheduling

import "time"

// EditWindow answers whether a finalized exam record is still mutable. Pure
// policy over two timestamps; cheap enough that callers re-check on every
// mutating request, not just at page load.
type EditWindow struct {
	TTL time.Duration

	// AllowMissingCreatedAt treats records without a creation timestamp as
	// editable. Legacy records predate the timestamp column; the flag exists
	// so the leniency is a named policy rather than an implicit default.
	AllowMissingCreatedAt bool
}

// Editable reports whether a record created at createdAt may still be
// modified at now. The deadline is createdAt + TTL, exclusive.
func (w EditWindow) Editable(createdAt *time.Time, now time.Time) bool {
	if createdAt == nil || createdAt.IsZero() {
		return w.AllowMissingCreatedAt
	}
	return now.Before(createdAt.Add(w.TTL))
}

// Deadline returns the instant the window closes, or false for records
// without a creation timestamp.
func (w EditWindow) Deadline(createdAt *time.Time) (time.Time, bool) {
	if createdAt == nil || createdAt.IsZero() {
		return time.Time{}, false
	}
	return createdAt.Add(w.TTL), true
}
