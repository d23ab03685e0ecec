package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests and single-node dev
// setups. All methods are safe for concurrent use; the serialization the
// booking flow needs still comes from the Locker, exactly as with Postgres.
type MemoryRepository struct {
	mu           sync.RWMutex
	doctors      map[uuid.UUID]*Doctor
	patients     map[uuid.UUID]*Patient
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	nextEventID  int64
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:      make(map[uuid.UUID]*Doctor),
		patients:     make(map[uuid.UUID]*Patient),
		appointments: make(map[uuid.UUID]*Appointment),
		now:          time.Now,
	}
}

// PutDoctor registers a doctor for test setup and initialization.
func (r *MemoryRepository) PutDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := d
	r.doctors[d.ID] = &doc
}

// PutPatient registers a patient for test setup and initialization.
func (r *MemoryRepository) PutPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pat := p
	r.patients[p.ID] = &pat
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	doc := *d
	return &doc, nil
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	pat := *p
	return &pat, nil
}

func (r *MemoryRepository) ListActiveForDay(_ context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || !a.Status.Active() {
			continue
		}
		if a.StartTime.Before(dayStart) || !a.StartTime.Before(dayEnd) {
			continue
		}
		result = append(result, *a)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (r *MemoryRepository) NextQueueNumber(_ context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for _, a := range r.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		if a.StartTime.Before(dayStart) || !a.StartTime.Before(dayEnd) {
			continue
		}
		if a.QueueNumber > max {
			max = a.QueueNumber
		}
	}
	return max + 1, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := *appt
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.CreatedAt = r.now()
	created.UpdatedAt = created.CreatedAt

	r.appointments[created.ID] = &created
	out := created
	return &out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	appt := *a
	return &appt, nil
}

func (r *MemoryRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	detail := AppointmentDetail{Appointment: *appt}
	if d, ok := r.doctors[appt.DoctorID]; ok {
		doc := *d
		detail.Doctor = &doc
	}
	if p, ok := r.patients[appt.PatientID]; ok {
		pat := *p
		detail.Patient = &pat
	}
	return &detail, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status, cancelReason *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		// Compare-and-swap semantics: a stale from is indistinguishable from
		// a missing row, matching the Postgres implementation.
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	if cancelReason != nil {
		a.CancelReason = cancelReason
	}
	a.UpdatedAt = r.now()

	appt := *a
	return &appt, nil
}

func (r *MemoryRepository) UpdateAppointmentTime(_ context.Context, id uuid.UUID, start time.Time, queueNumber int) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || !a.Status.Waiting() {
		// Same compare-and-swap semantics as the status update: an
		// appointment that stopped waiting underneath us is not movable.
		return nil, ErrAppointmentNotFound
	}

	a.StartTime = start
	a.QueueNumber = queueNumber
	a.UpdatedAt = r.now()

	appt := *a
	return &appt, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log for assertions.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}
