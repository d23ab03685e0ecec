package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgErrExclusionViolation fires when the appointments no-overlap exclusion
// constraint rejects an insert or move. The constraint is the storage-level
// backstop behind the doctor-day lock.
const pgErrExclusionViolation = "23P01"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string
	var slotMinutes int

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.Active,
		&d.Hours.StartMinute,
		&d.Hours.EndMinute,
		&slotMinutes,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	d.Hours.SlotLength = time.Duration(slotMinutes) * time.Minute
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string
	var birthDate *time.Time

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&birthDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	p.BirthDate = birthDate
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var durationMinutes int
	var priority *string
	var priorityNote *string
	var cancelReason *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.StartTime,
		&durationMinutes,
		&a.Type,
		&a.Status,
		&a.QueueNumber,
		&priority,
		&priorityNote,
		&cancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Duration = time.Duration(durationMinutes) * time.Minute
	if priority != nil {
		p := Priority(*priority)
		a.Priority = &p
	}
	a.PriorityNote = priorityNote
	a.CancelReason = cancelReason
	return &a, nil
}

const appointmentColumns = `id, doctor_id, patient_id, start_time, duration_minutes,
		       visit_type, status, queue_number, priority, priority_note,
		       cancel_reason, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, active, work_start_minute, work_end_minute,
		       slot_minutes, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, birth_date, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListActiveForDay(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND status IN ('pending', 'scheduled', 'confirmed', 'in_progress')
		ORDER BY start_time
	`, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) NextQueueNumber(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_number), 0) + 1
		FROM appointments
		WHERE doctor_id = $1
		  AND start_time >= $2
		  AND start_time < $3
	`, doctorID, dayStart, dayEnd).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next queue number: %w", err)
	}
	return next, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, start_time, duration_minutes,
		                          visit_type, status, queue_number, priority, priority_note,
		                          created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.DoctorID, appt.PatientID, appt.StartTime,
		int(appt.Duration/time.Minute), appt.Type, appt.Status, appt.QueueNumber,
		priorityString(appt.Priority), appt.PriorityNote)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, mapOverlapViolation(err, appt)
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := AppointmentDetail{Appointment: *appt}

	doctor, err := r.GetDoctorByID(ctx, appt.DoctorID)
	if err != nil && !errors.Is(err, ErrDoctorNotFound) {
		return nil, err
	}
	detail.Doctor = doctor

	patient, err := r.GetPatientByID(ctx, appt.PatientID)
	if err != nil && !errors.Is(err, ErrPatientNotFound) {
		return nil, err
	}
	detail.Patient = patient

	return &detail, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, cancelReason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancel_reason = COALESCE($4, cancel_reason),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, cancelReason)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentTime(ctx context.Context, id uuid.UUID, start time.Time, queueNumber int) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    queue_number = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'scheduled', 'confirmed')
		RETURNING `+appointmentColumns+`
	`, id, start, queueNumber)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, mapOverlapViolation(err, nil)
	}
	return updated, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func mapOverlapViolation(err error, appt *Appointment) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrExclusionViolation {
		conflict := &ConflictError{}
		if appt != nil {
			conflict.DoctorID = appt.DoctorID
			conflict.Start = appt.StartTime
			conflict.End = appt.End()
		}
		return conflict
	}
	return err
}

func priorityString(p *Priority) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
