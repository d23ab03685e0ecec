package scheduling

import (
	"time"
)

// Slot is a derived view over the active appointment set. Slots are never
// stored; they are recomputed on every query so they cannot drift from the
// bookings they summarize.
type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

// ComputeSlots generates the bookable grid for one doctor-day. day must be
// midnight in the clinic zone; active holds that doctor's non-released
// appointments for the day. A slot is unavailable iff its half-open interval
// intersects any active appointment.
func ComputeSlots(hours WorkingHours, day time.Time, active []Appointment) ([]Slot, error) {
	if hours.SlotLength <= 0 {
		return nil, &ValidationError{Field: "slot_length", Reason: "must be positive"}
	}
	if hours.EndMinute <= hours.StartMinute {
		return nil, &ValidationError{Field: "working_hours", Reason: "end must be after start"}
	}

	dayStart, dayEnd := hours.Window(day)

	var slots []Slot
	for start := dayStart; !start.Add(hours.SlotLength).After(dayEnd); start = start.Add(hours.SlotLength) {
		end := start.Add(hours.SlotLength)
		slots = append(slots, Slot{
			Start:     start,
			End:       end,
			Available: !anyOverlap(start, end, active),
		})
	}

	return slots, nil
}

// OverlayOwnSlot returns a copy of slots with the slot matching appt's own
// interval forced available, so an edit can keep its current time while other
// fields change. The base computation is left untouched.
func OverlayOwnSlot(slots []Slot, appt *Appointment) []Slot {
	if appt == nil {
		return slots
	}

	out := make([]Slot, len(slots))
	copy(out, slots)
	for i := range out {
		if out[i].Start.Equal(appt.StartTime) {
			out[i].Available = true
		}
	}
	return out
}

func anyOverlap(start, end time.Time, active []Appointment) bool {
	for _, a := range active {
		if overlaps(start, end, a.StartTime, a.End()) {
			return true
		}
	}
	return false
}

// overlaps tests two half-open intervals. Using half-open bounds means
// back-to-back bookings at an exact slot boundary do not collide.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
