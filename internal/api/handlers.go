package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	redisclient "github.com/clinicops/clinic-scheduling/internal/redis"
	"github.com/clinicops/clinic-scheduling/internal/scheduling"
)

func slotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		// A bare date is a clinic-local civil date; parsing it in UTC would
		// shift it onto the wrong day for zones west of UTC.
		date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), svc.ClinicLocation())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		excludeID := uuid.Nil
		if raw := r.URL.Query().Get("exclude_appointment_id"); raw != "" {
			excludeID, err = uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude_appointment_id", "exclude_appointment_id must be a valid UUID")
				return
			}
		}

		slots, err := svc.Slots(r.Context(), doctorID, date, excludeID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func bookAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		startTime, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be RFC 3339")
			return
		}

		booking := scheduling.BookingRequest{
			DoctorID:     doctorID,
			PatientID:    patientID,
			StartTime:    startTime,
			Type:         scheduling.VisitType(req.Type),
			PriorityNote: req.PriorityNote,
			Channel:      scheduling.BookingChannel(req.Channel),
		}
		if req.Priority != nil {
			p := scheduling.Priority(*req.Priority)
			booking.Priority = &p
		}

		appt, err := svc.Book(r.Context(), booking)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.Appointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
	}
}

func rescheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		startTime, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be RFC 3339")
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, startTime)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionHandler(run func(r *http.Request, id uuid.UUID) (*scheduling.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := run(r, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.Confirm(r.Context(), id)
	})
}

func completeHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.Complete(r.Context(), id)
	})
}

func noShowHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.MarkNoShow(r.Context(), id)
	})
}

func cancelHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, &scheduling.ValidationError{Field: "request_body", Reason: "could not parse JSON"}
		}
		return svc.Cancel(r.Context(), id, req.Reason)
	})
}

func queueHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		entries, err := svc.Queue(r.Context(), doctorID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]QueueEntryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, toQueueEntryResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func callNextHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		entry, err := svc.CallNext(r.Context(), doctorID)
		if err != nil {
			if errors.Is(err, scheduling.ErrQueueEmpty) {
				// An empty queue is a distinguishable empty result, not a failure.
				w.WriteHeader(http.StatusNoContent)
				return
			}
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueEntryResponse(*entry))
	}
}

func editWindowHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var createdAt *time.Time
		if raw := r.URL.Query().Get("created_at"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_created_at", "created_at must be RFC 3339")
				return
			}
			createdAt = &t
		}

		editable, deadline := svc.RecordEditable(createdAt)
		writeJSON(w, http.StatusOK, EditWindowResponse{Editable: editable, Deadline: deadline})
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *scheduling.ValidationError
	var conflictErr *scheduling.ConflictError
	var transitionErr *scheduling.TransitionError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.As(err, &conflictErr):
		writeError(w, http.StatusConflict, "slot_conflict", conflictErr.Error())
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, "illegal_transition", transitionErr.Error())
	case errors.Is(err, scheduling.ErrDoctorBusy):
		writeError(w, http.StatusConflict, "doctor_busy", err.Error())
	case errors.Is(err, scheduling.ErrDoctorInactive):
		writeError(w, http.StatusConflict, "doctor_inactive", err.Error())
	case errors.Is(err, scheduling.ErrScheduleContended),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "schedule_contended", "schedule is being modified, please retry shortly")
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
