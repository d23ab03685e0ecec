package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/clinicops/clinic-scheduling/internal/redis"
)

// SingleNodeLocker implements the doctor-day lock with in-process mutexes.
// It gives the same per-doctor-per-day serialization as the Redis locker
// when every caller lives in one process: tests and single-node dev setups.
type SingleNodeLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ redisclient.Locker = (*SingleNodeLocker)(nil)

func NewSingleNodeLocker() *SingleNodeLocker {
	return &SingleNodeLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *SingleNodeLocker) WithDoctorDayLock(ctx context.Context, doctorID uuid.UUID, day time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("%s:%s", doctorID.String(), day.Format("2006-01-02"))

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
