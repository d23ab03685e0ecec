package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConflictDetectsOverlap(t *testing.T) {
	doctorID := uuid.New()
	existing := apptAt(doctorID, testDay.Add(9*time.Hour), StatusScheduled)

	err := CheckConflict(doctorID, testDay.Add(9*time.Hour), 30*time.Minute, []Appointment{existing}, uuid.Nil)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, doctorID, conflictErr.DoctorID)
	assert.Equal(t, existing.StartTime, conflictErr.Start)
	assert.Equal(t, existing.End(), conflictErr.End)
}

func TestCheckConflictAllowsAdjacentIntervals(t *testing.T) {
	doctorID := uuid.New()
	existing := apptAt(doctorID, testDay.Add(9*time.Hour), StatusConfirmed)

	assert.NoError(t, CheckConflict(doctorID, testDay.Add(9*time.Hour+30*time.Minute), 30*time.Minute, []Appointment{existing}, uuid.Nil))
	assert.NoError(t, CheckConflict(doctorID, testDay.Add(8*time.Hour+30*time.Minute), 30*time.Minute, []Appointment{existing}, uuid.Nil))
}

func TestCheckConflictExcludesOwnAppointment(t *testing.T) {
	doctorID := uuid.New()
	own := apptAt(doctorID, testDay.Add(9*time.Hour), StatusScheduled)
	other := apptAt(doctorID, testDay.Add(10*time.Hour), StatusScheduled)

	// Keeping its own time during an edit is fine.
	assert.NoError(t, CheckConflict(doctorID, own.StartTime, own.Duration, []Appointment{own, other}, own.ID))

	// Moving onto somebody else's slot is not.
	err := CheckConflict(doctorID, other.StartTime, own.Duration, []Appointment{own, other}, own.ID)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}

func TestCheckConflictIgnoresReleasedAppointments(t *testing.T) {
	doctorID := uuid.New()
	cancelled := apptAt(doctorID, testDay.Add(9*time.Hour), StatusCancelled)
	completed := apptAt(doctorID, testDay.Add(9*time.Hour), StatusCompleted)
	noShow := apptAt(doctorID, testDay.Add(9*time.Hour), StatusNoShow)

	err := CheckConflict(doctorID, testDay.Add(9*time.Hour), 30*time.Minute,
		[]Appointment{cancelled, completed, noShow}, uuid.Nil)
	assert.NoError(t, err, "released intervals are bookable again")
}

func TestCheckConflictRejectsNonPositiveDuration(t *testing.T) {
	var validationErr *ValidationError
	err := CheckConflict(uuid.New(), testDay, 0, nil, uuid.Nil)
	require.ErrorAs(t, err, &validationErr)
}
