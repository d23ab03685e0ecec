package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictError reports a booking that would overlap an existing active
// appointment. It carries the offending interval so the caller can re-query
// and pick another slot; the core never retries on its own.
type ConflictError struct {
	DoctorID uuid.UUID
	Start    time.Time
	End      time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("doctor %s already booked from %s to %s",
		e.DoctorID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// CheckConflict validates a proposed interval against the live appointment
// set. It must run inside the doctor-day lock, against appointments fetched
// inside that same lock; checking a precomputed slot list would reintroduce
// the read-then-commit race.
//
// exclude skips one appointment ID, letting a reschedule keep its own slot.
func CheckConflict(doctorID uuid.UUID, start time.Time, duration time.Duration, active []Appointment, exclude uuid.UUID) error {
	if duration <= 0 {
		return &ValidationError{Field: "duration", Reason: "must be positive"}
	}

	end := start.Add(duration)
	for _, a := range active {
		if a.ID == exclude {
			continue
		}
		if !a.Status.Active() {
			continue
		}
		if overlaps(start, end, a.StartTime, a.End()) {
			return &ConflictError{DoctorID: doctorID, Start: a.StartTime, End: a.End()}
		}
	}

	return nil
}
