package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all store interactions needed by the service. Slot and
// queue views are not stored: they derive from ListActiveForDay output.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// ListActiveForDay returns the doctor's appointments starting within
	// [dayStart, dayEnd) whose status still occupies its interval, ordered by
	// start time.
	ListActiveForDay(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error)

	// NextQueueNumber returns MAX+1 over every appointment of the doctor-day,
	// cancelled ones included, so numbers are never reused within a day. Must
	// be called inside the doctor-day lock.
	NextQueueNumber(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) (int, error)

	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// UpdateAppointmentStatus is a compare-and-swap: the row is updated only
	// if its status still equals from, otherwise ErrAppointmentNotFound. A
	// lost race therefore surfaces instead of silently double-transitioning.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, cancelReason *string) (*Appointment, error)

	// UpdateAppointmentTime moves an appointment to a new start, updating its
	// queue number when the move crosses a day boundary. Like the status CAS
	// it only applies while the appointment is still waiting; a row that was
	// called or released in the meantime returns ErrAppointmentNotFound.
	UpdateAppointmentTime(ctx context.Context, id uuid.UUID, start time.Time, queueNumber int) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
