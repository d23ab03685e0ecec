package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// Active reports whether an appointment in this status still occupies its
// time interval for conflict purposes.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// Waiting reports whether an appointment in this status belongs to the
// call-next queue.
func (s Status) Waiting() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusConfirmed:
		return true
	}
	return false
}

// Terminal statuses admit no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type VisitType string

const (
	VisitConsultation VisitType = "consultation"
	VisitFollowUp     VisitType = "follow_up"
	VisitEmergency    VisitType = "emergency"
	VisitWalkIn       VisitType = "walk_in"
)

func (t VisitType) Valid() bool {
	switch t {
	case VisitConsultation, VisitFollowUp, VisitEmergency, VisitWalkIn:
		return true
	}
	return false
}

// Priority is the reason a waiting patient is advanced ahead of
// normally-ordered peers.
type Priority string

const (
	PriorityElderly     Priority = "elderly"
	PriorityPregnant    Priority = "pregnant"
	PriorityDisabled    Priority = "disabled"
	PriorityChildUnder6 Priority = "child_under_6"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityElderly, PriorityPregnant, PriorityDisabled, PriorityChildUnder6:
		return true
	}
	return false
}

// WorkingHours is a doctor's daily template. Start and End are minutes from
// midnight in the clinic's local zone.
type WorkingHours struct {
	StartMinute int
	EndMinute   int
	SlotLength  time.Duration
}

// Window anchors the template on a concrete day. day must be midnight in the
// clinic zone.
func (w WorkingHours) Window(day time.Time) (time.Time, time.Time) {
	start := day.Add(time.Duration(w.StartMinute) * time.Minute)
	end := day.Add(time.Duration(w.EndMinute) * time.Minute)
	return start, end
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Active    bool
	Hours     WorkingHours
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	BirthDate *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	PatientID    uuid.UUID
	StartTime    time.Time
	Duration     time.Duration
	Type         VisitType
	Status       Status
	QueueNumber  int
	Priority     *Priority
	PriorityNote *string
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// End is the exclusive upper bound of the occupied interval.
func (a Appointment) End() time.Time {
	return a.StartTime.Add(a.Duration)
}

type AppointmentDetail struct {
	Appointment
	Doctor  *Doctor
	Patient *Patient
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// ValidationError reports malformed input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
