package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/clinic-scheduling/internal/config"
	"github.com/clinicops/clinic-scheduling/internal/scheduling"
)

type testEnv struct {
	router    http.Handler
	repo      *scheduling.MemoryRepository
	doctorID  uuid.UUID
	patientID uuid.UUID
}

// newTestEnv wires the router against the in-memory repository with a doctor
// available around the clock, so bookings do not depend on wall-clock hour.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvIn(t, time.UTC, scheduling.WorkingHours{StartMinute: 0, EndMinute: 24 * 60, SlotLength: 30 * time.Minute})
}

func newTestEnvIn(t *testing.T, loc *time.Location, hours scheduling.WorkingHours) *testEnv {
	t.Helper()

	repo := scheduling.NewMemoryRepository()
	doctorID := uuid.New()
	repo.PutDoctor(scheduling.Doctor{
		ID:     doctorID,
		Name:   "Dr. Handler",
		Active: true,
		Hours:  hours,
	})
	patientID := uuid.New()
	repo.PutPatient(scheduling.Patient{ID: patientID, Name: "Test Patient"})

	cfg := config.Config{
		ClinicLocation:                  loc,
		SlotLength:                      30 * time.Minute,
		EditWindowTTL:                   24 * time.Hour,
		EditWindowAllowMissingCreatedAt: true,
	}
	svc := scheduling.NewService(repo, scheduling.NewSingleNodeLocker(), cfg, zerolog.Nop())

	router := NewRouter(RouterConfig{
		Service: svc,
		Logger:  zerolog.Nop(),
		Env:     "test",
		Version: "test",
	})

	return &testEnv{router: router, repo: repo, doctorID: doctorID, patientID: patientID}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// todaySlot returns a 30-minute aligned start inside the current UTC day,
// which the queue endpoints treat as "today".
func todaySlot(offset int) time.Time {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(12*time.Hour + time.Duration(offset)*30*time.Minute)
}

func (e *testEnv) book(t *testing.T, start time.Time) AppointmentResponse {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  e.doctorID.String(),
		PatientID: e.patientID.String(),
		StartTime: start.Format(time.RFC3339),
		Type:      "consultation",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestBookAppointmentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	start := todaySlot(0)

	resp := env.book(t, start)
	assert.Equal(t, env.doctorID, resp.DoctorID)
	assert.Equal(t, "scheduled", resp.Status)
	assert.Equal(t, 1, resp.QueueNumber)
	assert.True(t, resp.EndTime.Equal(resp.StartTime.Add(30*time.Minute)))
}

func TestBookAppointmentEndpointConflict(t *testing.T) {
	env := newTestEnv(t)
	start := todaySlot(0)
	env.book(t, start)

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  env.doctorID.String(),
		PatientID: env.patientID.String(),
		StartTime: start.Format(time.RFC3339),
		Type:      "consultation",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "slot_conflict", errResp.Error)
}

func TestBookAppointmentEndpointBadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     BookAppointmentRequest
		wantCode string
	}{
		{
			"bad doctor id",
			BookAppointmentRequest{DoctorID: "not-a-uuid", PatientID: env.patientID.String(), StartTime: todaySlot(0).Format(time.RFC3339), Type: "consultation"},
			"invalid_doctor_id",
		},
		{
			"bad start time",
			BookAppointmentRequest{DoctorID: env.doctorID.String(), PatientID: env.patientID.String(), StartTime: "tomorrow-ish", Type: "consultation"},
			"invalid_start_time",
		},
		{
			"unknown visit type",
			BookAppointmentRequest{DoctorID: env.doctorID.String(), PatientID: env.patientID.String(), StartTime: todaySlot(0).Format(time.RFC3339), Type: "seance"},
			"validation_error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/appointments", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
			assert.Equal(t, tc.wantCode, errResp.Error)
		})
	}
}

func TestBookUnknownDoctorIs404(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  uuid.NewString(),
		PatientID: env.patientID.String(),
		StartTime: todaySlot(0).Format(time.RFC3339),
		Type:      "consultation",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSlotsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	start := todaySlot(0)
	env.book(t, start)

	target := fmt.Sprintf("/slots?doctor_id=%s&date=%s", env.doctorID, start.Format("2006-01-02"))
	rec := env.do(t, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var slots []SlotResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&slots))
	require.Len(t, slots, 48, "24h of 30-minute slots")

	taken := 0
	for _, s := range slots {
		if !s.Available {
			taken++
			assert.True(t, s.Start.Equal(start))
		}
	}
	assert.Equal(t, 1, taken)
}

func TestSlotsEndpointInterpretsDateInClinicZone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	env := newTestEnvIn(t, loc, scheduling.WorkingHours{
		StartMinute: 8 * 60,
		EndMinute:   10 * 60,
		SlotLength:  30 * time.Minute,
	})

	// 09:00 clinic-local is 13:00 UTC; a UTC-parsed date would land the query
	// on the previous clinic day and miss this booking entirely.
	booked := time.Date(2026, 9, 1, 9, 0, 0, 0, loc)
	env.book(t, booked)

	rec := env.do(t, http.MethodGet,
		fmt.Sprintf("/slots?doctor_id=%s&date=2026-09-01", env.doctorID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var slots []SlotResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&slots))
	require.Len(t, slots, 4)

	assert.True(t, slots[0].Start.Equal(time.Date(2026, 9, 1, 8, 0, 0, 0, loc)))
	assert.True(t, slots[0].Available)
	assert.False(t, slots[2].Available, "the 09:00 local booking must appear on its own date")
	assert.True(t, slots[2].Start.Equal(booked))
}

func TestSlotsEndpointValidatesParams(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/slots?doctor_id=nope&date=2026-09-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/slots?doctor_id="+env.doctorID.String()+"&date=monday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRescheduleEndpoint(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, todaySlot(0))

	newStart := todaySlot(1)
	rec := env.do(t, http.MethodPatch, "/appointments/"+appt.ID.String(), RescheduleRequest{
		StartTime: newStart.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.StartTime.Equal(newStart))
	assert.Equal(t, appt.QueueNumber, resp.QueueNumber)
}

func TestLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, todaySlot(0))

	rec := env.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Terminal states reject further transitions.
	rec = env.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", CancelRequest{Reason: "too late"})
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "illegal_transition", errResp.Error)
}

func TestCancelEndpointRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, todaySlot(0))

	rec := env.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", CancelRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", CancelRequest{Reason: "patient request"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "cancelled", resp.Status)
	require.NotNil(t, resp.CancelReason)
	assert.Equal(t, "patient request", *resp.CancelReason)
}

func TestQueueAndCallNextEndpoints(t *testing.T) {
	env := newTestEnv(t)
	first := env.book(t, todaySlot(0))
	env.book(t, todaySlot(1))

	rec := env.do(t, http.MethodGet, "/queue?doctor_id="+env.doctorID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var queue []QueueEntryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&queue))
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].AppointmentID)

	rec = env.do(t, http.MethodPost, "/queue/call-next?doctor_id="+env.doctorID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entry QueueEntryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entry))
	assert.Equal(t, first.ID, entry.AppointmentID)

	rec = env.do(t, http.MethodPost, "/queue/call-next?doctor_id="+env.doctorID.String(), nil)
	var errResp ErrorResponse
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "doctor_busy", errResp.Error)
}

func TestCallNextEmptyQueueIsNoContent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/queue/call-next?doctor_id="+env.doctorID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestGetAppointmentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, todaySlot(0))

	rec := env.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AppointmentDetailResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, appt.ID, resp.ID)

	require.NotNil(t, resp.Doctor)
	assert.Equal(t, env.doctorID, resp.Doctor.ID)
	assert.Equal(t, "Dr. Handler", resp.Doctor.Name)
	require.NotNil(t, resp.Patient)
	assert.Equal(t, "Test Patient", resp.Patient.Name)

	rec = env.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditWindowEndpoint(t *testing.T) {
	env := newTestEnv(t)

	fresh := time.Now().UTC().Add(-1 * time.Hour)
	rec := env.do(t, http.MethodGet, "/records/edit-window?created_at="+fresh.Format(time.RFC3339), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EditWindowResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Editable)
	require.NotNil(t, resp.Deadline)

	// Decode each response into a zero value: deadline is omitted from some
	// responses and a reused struct would keep the previous one.
	stale := time.Now().UTC().Add(-48 * time.Hour)
	rec = env.do(t, http.MethodGet, "/records/edit-window?created_at="+stale.Format(time.RFC3339), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var staleResp EditWindowResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&staleResp))
	assert.False(t, staleResp.Editable)

	// Legacy records without a creation timestamp stay editable.
	rec = env.do(t, http.MethodGet, "/records/edit-window", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var legacyResp EditWindowResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&legacyResp))
	assert.True(t, legacyResp.Editable)
	assert.Nil(t, legacyResp.Deadline)
}

func TestLivenessEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LivenessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
