package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettler struct {
	mu    sync.Mutex
	calls int
	ttl   time.Duration
	limit int
	err   error
}

func (f *fakeSettler) SettleStale(_ context.Context, ttl time.Duration, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ttl, f.limit = ttl, limit
	return 2, f.err
}

func (f *fakeSettler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestReservationSweeper_Run(t *testing.T) {
	settler := &fakeSettler{}
	sweeper := NewReservationSweeper(settler, 15*time.Minute, 0)

	require.NoError(t, sweeper.Run(context.Background()))
	assert.Equal(t, 15*time.Minute, settler.ttl)
	assert.Equal(t, 100, settler.limit)

	settler.err = errors.New("db down")
	assert.Error(t, sweeper.Run(context.Background()))
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil)
	assert.Error(t, s.Add("every minute", NewReservationSweeper(&fakeSettler{}, time.Minute, 10)))
}

func TestScheduler_RunsAndObserves(t *testing.T) {
	settler := &fakeSettler{}
	var mu sync.Mutex
	var observed []string
	s := NewScheduler(func(job string, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, job)
	})
	require.NoError(t, s.Add("@every 1s", NewReservationSweeper(settler, time.Minute, 10)))

	s.Start()
	require.Eventually(t, func() bool { return settler.count() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, observed)
	assert.Equal(t, "reservation_sweeper", observed[0])
}
