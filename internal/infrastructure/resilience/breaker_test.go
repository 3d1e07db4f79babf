package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("remote failed")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(settings Settings) (*Breaker, *fakeClock) {
	c := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("backend", settings)
	b.now = c.now
	b.expiry = c.now().Add(b.settings.Interval)
	return b, c
}

func fail() (string, error)    { return "", errRemote }
func succeed() (string, error) { return "ok", nil }

func TestBreakerTransitions(t *testing.T) {
	var changes []string
	b, clock := newTestBreaker(Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
		OnStateChange: func(_ string, from, to State) {
			changes = append(changes, from.String()+"->"+to.String())
		},
	})

	for i := 0; i < 3; i++ {
		_, err := Execute(b, fail)
		require.ErrorIs(t, err, errRemote)
	}
	assert.Equal(t, StateOpen, b.State())

	_, err := Execute(b, succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	clock.advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	v, err := Execute(b, succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, StateHalfOpen, b.State())

	_, err = Execute(b, succeed)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, changes)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Settings{
		Timeout:     time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	_, _ = Execute(b, fail)
	clock.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	_, _ = Execute(b, fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestHalfOpenLimitsTrialRequests(t *testing.T) {
	b, clock := newTestBreaker(Settings{
		MaxRequests: 1,
		Timeout:     time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	_, _ = Execute(b, fail)
	clock.advance(2 * time.Second)

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		_, err := Execute(b, func() (string, error) {
			<-release
			return "ok", nil
		})
		done <- err
	}()

	require.Eventually(t, func() bool { return b.Counts().Requests == 1 }, time.Second, time.Millisecond)
	_, err := Execute(b, succeed)
	assert.ErrorIs(t, err, ErrTooManyRequests)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestIntervalResetsCounts(t *testing.T) {
	b, clock := newTestBreaker(Settings{Interval: time.Minute})

	_, _ = Execute(b, fail)
	assert.Equal(t, uint32(1), b.Counts().TotalFailures)

	clock.advance(2 * time.Minute)
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Counts().TotalFailures)
}

func TestCancellationIsNotFailure(t *testing.T) {
	b, _ := newTestBreaker(Settings{ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 }})

	err := b.Do(func() error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().TotalSuccesses)
}

func TestPanicCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(Settings{ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 }})

	assert.Panics(t, func() {
		_, _ = Execute(b, func() (int, error) { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}
