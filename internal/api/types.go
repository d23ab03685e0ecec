package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/scheduling"
)

type BookAppointmentRequest struct {
	DoctorID     string  `json:"doctor_id"`
	PatientID    string  `json:"patient_id"`
	StartTime    string  `json:"start_time"` // RFC 3339
	Type         string  `json:"type"`
	Priority     *string `json:"priority,omitempty"`
	PriorityNote *string `json:"priority_note,omitempty"`
	Channel      string  `json:"channel,omitempty"` // staff (default) or patient
}

type RescheduleRequest struct {
	StartTime string `json:"start_time"` // RFC 3339
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	QueueNumber  int       `json:"queue_number"`
	Priority     *string   `json:"priority,omitempty"`
	PriorityNote *string   `json:"priority_note,omitempty"`
	CancelReason *string   `json:"cancel_reason,omitempty"`
}

type DoctorSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
}

type PatientSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// AppointmentDetailResponse is the single-appointment view with the doctor
// and patient hydrated alongside.
type AppointmentDetailResponse struct {
	AppointmentResponse
	Doctor  *DoctorSummary  `json:"doctor,omitempty"`
	Patient *PatientSummary `json:"patient,omitempty"`
}

type SlotResponse struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

type QueueEntryResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	QueueNumber   int       `json:"queue_number"`
	Rank          int       `json:"rank"`
	Type          string    `json:"type"`
	Priority      *string   `json:"priority,omitempty"`
	StartTime     time.Time `json:"start_time"`
}

type EditWindowResponse struct {
	Editable bool       `json:"editable"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:           a.ID,
		DoctorID:     a.DoctorID,
		PatientID:    a.PatientID,
		StartTime:    a.StartTime,
		EndTime:      a.End(),
		Type:         string(a.Type),
		Status:       string(a.Status),
		QueueNumber:  a.QueueNumber,
		PriorityNote: a.PriorityNote,
		CancelReason: a.CancelReason,
	}
	if a.Priority != nil {
		p := string(*a.Priority)
		resp.Priority = &p
	}
	return resp
}

func toAppointmentDetailResponse(d *scheduling.AppointmentDetail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
	}
	if d.Doctor != nil {
		resp.Doctor = &DoctorSummary{
			ID:        d.Doctor.ID,
			Name:      d.Doctor.Name,
			Specialty: d.Doctor.Specialty,
		}
	}
	if d.Patient != nil {
		resp.Patient = &PatientSummary{
			ID:   d.Patient.ID,
			Name: d.Patient.Name,
		}
	}
	return resp
}

func toQueueEntryResponse(e scheduling.QueueEntry) QueueEntryResponse {
	resp := QueueEntryResponse{
		AppointmentID: e.AppointmentID,
		PatientID:     e.PatientID,
		QueueNumber:   e.QueueNumber,
		Rank:          e.Rank,
		Type:          string(e.Type),
		StartTime:     e.StartTime,
	}
	if e.Priority != nil {
		p := string(*e.Priority)
		resp.Priority = &p
	}
	return resp
}

func toSlotResponses(slots []scheduling.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Start: s.Start, End: s.End, Available: s.Available})
	}
	return out
}
