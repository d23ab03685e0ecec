package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic-scheduling/internal/config"
	redisclient "github.com/clinicops/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
	EventPatientCalled          = "PATIENT_CALLED"
)

var (
	// ErrQueueEmpty is the distinguishable empty result of call-next, not a
	// failure.
	ErrQueueEmpty = errors.New("no waiting patients for doctor")

	// ErrDoctorBusy means call-next was attempted while a patient is already
	// being seen. One patient in progress per doctor is a system invariant.
	ErrDoctorBusy = errors.New("doctor already has a patient in progress")

	ErrDoctorInactive = errors.New("doctor is not accepting bookings")

	// ErrScheduleContended means the doctor-day lock could not be acquired;
	// the caller should retry shortly.
	ErrScheduleContended = errors.New("doctor schedule is being modified, please retry")
)

// BookingChannel identifies who initiated a booking; it decides the initial
// lifecycle state.
type BookingChannel string

const (
	ChannelStaff   BookingChannel = "staff"   // front desk or walk-in, starts scheduled
	ChannelPatient BookingChannel = "patient" // self-service, starts pending until confirmed
)

type BookingRequest struct {
	DoctorID     uuid.UUID
	PatientID    uuid.UUID
	StartTime    time.Time
	Type         VisitType
	Priority     *Priority
	PriorityNote *string
	Channel      BookingChannel
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log.With().Str("component", "scheduling").Logger(),
		now:    time.Now,
	}
}

// ClinicLocation returns the zone civil dates are interpreted in. Callers
// parsing a bare YYYY-MM-DD must anchor it here, not in UTC.
func (s *Service) ClinicLocation() *time.Location {
	return s.cfg.ClinicLocation
}

// dayOf truncates t to midnight in the clinic zone. Every per-day query and
// lock key derives from this single definition.
func (s *Service) dayOf(t time.Time) time.Time {
	local := t.In(s.cfg.ClinicLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.ClinicLocation)
}

// Slots computes the bookable grid for a doctor on a date. An inactive
// doctor has no slots. When excludeID names one of the doctor's own
// appointments, its slot is overlaid as available so an edit can keep its
// current time.
func (s *Service) Slots(ctx context.Context, doctorID uuid.UUID, date time.Time, excludeID uuid.UUID) ([]Slot, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Active {
		return []Slot{}, nil
	}

	day := s.dayOf(date)
	active, err := s.repo.ListActiveForDay(ctx, doctorID, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	slots, err := ComputeSlots(s.hoursFor(doctor), day, active)
	if err != nil {
		return nil, err
	}

	if excludeID != uuid.Nil {
		appt, err := s.repo.GetAppointmentByID(ctx, excludeID)
		if err != nil {
			return nil, fmt.Errorf("load excluded appointment: %w", err)
		}
		if appt.DoctorID == doctorID {
			slots = OverlayOwnSlot(slots, appt)
		}
	}

	return slots, nil
}

// Book validates and commits a new appointment. Conflict check, queue-number
// assignment and insert all run inside the doctor-day lock so concurrent
// bookers cannot both pass validation against stale state.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.DoctorID == uuid.Nil {
		return nil, &ValidationError{Field: "doctor_id", Reason: "is required"}
	}
	if req.PatientID == uuid.Nil {
		return nil, &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if req.StartTime.IsZero() {
		return nil, &ValidationError{Field: "start_time", Reason: "is required"}
	}
	if !req.Type.Valid() {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown visit type %q", req.Type)}
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return nil, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", *req.Priority)}
	}
	channel := req.Channel
	if channel == "" {
		channel = ChannelStaff
	}
	if channel != ChannelStaff && channel != ChannelPatient {
		return nil, &ValidationError{Field: "channel", Reason: fmt.Sprintf("unknown channel %q", channel)}
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Active {
		return nil, ErrDoctorInactive
	}
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	hours := s.hoursFor(doctor)
	start := req.StartTime.In(s.cfg.ClinicLocation)
	day := s.dayOf(start)
	if err := s.checkWithinHours(hours, day, start); err != nil {
		return nil, err
	}

	status := StatusScheduled
	if channel == ChannelPatient {
		status = StatusPending
	}

	var created *Appointment

	err = s.locker.WithDoctorDayLock(ctx, req.DoctorID, day, func(lockCtx context.Context) error {
		active, err := s.repo.ListActiveForDay(lockCtx, req.DoctorID, day, day.Add(24*time.Hour))
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}

		if err := CheckConflict(req.DoctorID, start, hours.SlotLength, active, uuid.Nil); err != nil {
			return err
		}

		queueNumber, err := s.repo.NextQueueNumber(lockCtx, req.DoctorID, day, day.Add(24*time.Hour))
		if err != nil {
			return err
		}

		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			DoctorID:     req.DoctorID,
			PatientID:    req.PatientID,
			StartTime:    start,
			Duration:     hours.SlotLength,
			Type:         req.Type,
			Status:       status,
			QueueNumber:  queueNumber,
			Priority:     req.Priority,
			PriorityNote: req.PriorityNote,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":    req.DoctorID.String(),
			"patient_id":   req.PatientID.String(),
			"start_time":   start,
			"queue_number": queueNumber,
			"channel":      string(channel),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleContended
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Time("start_time", created.StartTime).
		Int("queue_number", created.QueueNumber).
		Msg("appointment booked")

	return created, nil
}

// Reschedule moves a waiting appointment to a new start time, validating the
// new interval against every other booking under the target day's lock.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time) (*Appointment, error) {
	if newStart.IsZero() {
		return nil, &ValidationError{Field: "start_time", Reason: "is required"}
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !appt.Status.Waiting() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("cannot reschedule a %s appointment", appt.Status)}
	}

	doctor, err := s.repo.GetDoctorByID(ctx, appt.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Active {
		return nil, ErrDoctorInactive
	}

	hours := s.hoursFor(doctor)
	start := newStart.In(s.cfg.ClinicLocation)
	day := s.dayOf(start)
	if err := s.checkWithinHours(hours, day, start); err != nil {
		return nil, err
	}

	oldDay := s.dayOf(appt.StartTime)

	var updated *Appointment

	err = s.locker.WithDoctorDayLock(ctx, appt.DoctorID, day, func(lockCtx context.Context) error {
		active, err := s.repo.ListActiveForDay(lockCtx, appt.DoctorID, day, day.Add(24*time.Hour))
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}

		if err := CheckConflict(appt.DoctorID, start, appt.Duration, active, appt.ID); err != nil {
			return err
		}

		// Queue numbers are per doctor-day; a move to another day gets a
		// fresh number there, a same-day move keeps its place in line.
		queueNumber := appt.QueueNumber
		if !day.Equal(oldDay) {
			queueNumber, err = s.repo.NextQueueNumber(lockCtx, appt.DoctorID, day, day.Add(24*time.Hour))
			if err != nil {
				return err
			}
		}

		moved, err := s.repo.UpdateAppointmentTime(lockCtx, appt.ID, start, queueNumber)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// The waiting check above ran before we held this day's lock;
				// a call-next under today's lock may have seated the patient
				// since. The conditional update catches that.
				return &ValidationError{Field: "status", Reason: "appointment is no longer waiting"}
			}
			return fmt.Errorf("move appointment: %w", err)
		}

		updated = moved
		s.logEvent(lockCtx, appt.ID, EventAppointmentRescheduled, map[string]any{
			"from": appt.StartTime,
			"to":   start,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleContended
		}
		return nil, err
	}

	return updated, nil
}

// Confirm moves a pending or scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, nil, EventAppointmentConfirmed, nil)
}

// Cancel releases an appointment's interval. A non-empty reason is required.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	if reason == "" {
		return nil, &ValidationError{Field: "cancel_reason", Reason: "is required"}
	}
	return s.transition(ctx, id, StatusCancelled, &reason, EventAppointmentCancelled, map[string]any{"reason": reason})
}

// Complete finishes an exam; the interval becomes inert for conflict checks.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, nil, EventAppointmentCompleted, nil)
}

// MarkNoShow records a patient who failed to appear.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, nil, EventAppointmentNoShow, nil)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, cancelReason *string, eventType string, payload map[string]any) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := Transition(appt.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to, cancelReason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost the compare-and-swap: someone transitioned first.
			return nil, &TransitionError{From: appt.Status, To: to}
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logEvent(ctx, id, eventType, payload)
	return updated, nil
}

// Queue returns today's waiting patients for a doctor in call order.
func (s *Service) Queue(ctx context.Context, doctorID uuid.UUID) ([]QueueEntry, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	day := s.dayOf(s.now())
	active, err := s.repo.ListActiveForDay(ctx, doctorID, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	return OrderQueue(active), nil
}

// CallNext picks the head of the doctor's queue and moves it to in_progress
// as one atomic step under the doctor-day lock. It refuses while a patient is
// already in progress, so two concurrent calls can never seat two patients.
func (s *Service) CallNext(ctx context.Context, doctorID uuid.UUID) (*QueueEntry, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	day := s.dayOf(s.now())

	var called *QueueEntry

	err := s.locker.WithDoctorDayLock(ctx, doctorID, day, func(lockCtx context.Context) error {
		active, err := s.repo.ListActiveForDay(lockCtx, doctorID, day, day.Add(24*time.Hour))
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}

		for _, a := range active {
			if a.Status == StatusInProgress {
				return ErrDoctorBusy
			}
		}

		entries := OrderQueue(active)
		if len(entries) == 0 {
			return ErrQueueEmpty
		}
		head := entries[0]

		appt, err := s.repo.GetAppointmentByID(lockCtx, head.AppointmentID)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		if err := Transition(appt.Status, StatusInProgress); err != nil {
			return err
		}
		if _, err := s.repo.UpdateAppointmentStatus(lockCtx, appt.ID, appt.Status, StatusInProgress, nil); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		called = &head
		s.logEvent(lockCtx, appt.ID, EventPatientCalled, map[string]any{
			"queue_number": head.QueueNumber,
			"rank":         head.Rank,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleContended
		}
		return nil, err
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Str("appointment_id", called.AppointmentID.String()).
		Int("queue_number", called.QueueNumber).
		Msg("patient called")

	return called, nil
}

// Appointment returns a hydrated appointment by ID.
func (s *Service) Appointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// RecordEditable answers whether an exam record created at createdAt may
// still be modified, and when the window closes.
func (s *Service) RecordEditable(createdAt *time.Time) (bool, *time.Time) {
	w := EditWindow{
		TTL:                   s.cfg.EditWindowTTL,
		AllowMissingCreatedAt: s.cfg.EditWindowAllowMissingCreatedAt,
	}
	editable := w.Editable(createdAt, s.now())
	if deadline, ok := w.Deadline(createdAt); ok {
		return editable, &deadline
	}
	return editable, nil
}

func (s *Service) hoursFor(doctor *Doctor) WorkingHours {
	hours := doctor.Hours
	if hours.SlotLength <= 0 {
		hours.SlotLength = s.cfg.SlotLength
	}
	return hours
}

func (s *Service) checkWithinHours(hours WorkingHours, day time.Time, start time.Time) error {
	workStart, workEnd := hours.Window(day)
	if start.Before(workStart) || start.Add(hours.SlotLength).After(workEnd) {
		return &ValidationError{Field: "start_time", Reason: "outside the doctor's working hours"}
	}
	if start.Sub(workStart)%hours.SlotLength != 0 {
		return &ValidationError{Field: "start_time", Reason: "not aligned to the slot grid"}
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
