package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEditWindowBoundary(t *testing.T) {
	w := EditWindow{TTL: 24 * time.Hour}
	createdAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, w.Editable(&createdAt, createdAt.Add(24*time.Hour-time.Second)))
	assert.False(t, w.Editable(&createdAt, createdAt.Add(24*time.Hour)), "deadline itself is closed")
	assert.False(t, w.Editable(&createdAt, createdAt.Add(24*time.Hour+time.Second)))
}

func TestEditWindowTypicalRequests(t *testing.T) {
	w := EditWindow{TTL: 24 * time.Hour}
	createdAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, w.Editable(&createdAt, createdAt.Add(23*time.Hour)))
	assert.False(t, w.Editable(&createdAt, createdAt.Add(25*time.Hour)))
}

func TestEditWindowMissingCreatedAt(t *testing.T) {
	createdAt := time.Time{}

	open := EditWindow{TTL: 24 * time.Hour, AllowMissingCreatedAt: true}
	assert.True(t, open.Editable(nil, time.Now()))
	assert.True(t, open.Editable(&createdAt, time.Now()), "zero timestamp counts as missing")

	closed := EditWindow{TTL: 24 * time.Hour, AllowMissingCreatedAt: false}
	assert.False(t, closed.Editable(nil, time.Now()))
	assert.False(t, closed.Editable(&createdAt, time.Now()))
}

func TestEditWindowDeadline(t *testing.T) {
	w := EditWindow{TTL: 24 * time.Hour}
	createdAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	deadline, ok := w.Deadline(&createdAt)
	assert.True(t, ok)
	assert.Equal(t, createdAt.Add(24*time.Hour), deadline)

	_, ok = w.Deadline(nil)
	assert.False(t, ok)
}
