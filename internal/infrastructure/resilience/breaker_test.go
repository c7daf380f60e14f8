package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("upstream 503")
	errCaller    = errors.New("bad request")
)

type fakeClock struct{ now time.Time }

func newClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func fail(err error) func() error { return func() error { return err } }

func succeed() error { return nil }

func newBreaker(clock *fakeClock, threshold uint32) *Breaker {
	return New("test", Settings{
		Cooldown: 10 * time.Second,
		Window:   time.Minute,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, errTransient)
		},
		Now: clock.Now,
	})
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := newClock()
	b := newBreaker(clock, 3)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(fail(errTransient)), errTransient)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerIgnoresCallerErrors(t *testing.T) {
	clock := newClock()
	b := newBreaker(clock, 2)

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.Do(fail(errCaller)), errCaller)
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(5), b.Counts().TotalSuccesses)
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	clock := newClock()
	b := newBreaker(clock, 3)

	require.Error(t, b.Do(fail(errTransient)))
	require.Error(t, b.Do(fail(errTransient)))
	require.NoError(t, b.Do(succeed))
	require.Error(t, b.Do(fail(errTransient)))

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clock := newClock()
	b := newBreaker(clock, 1)

	var transitions []string
	b.settings.OnStateChange = func(_ string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	require.Error(t, b.Do(fail(errTransient)))
	assert.Equal(t, StateOpen, b.State())

	clock.Advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(succeed))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := newClock()
	b := newBreaker(clock, 1)

	require.Error(t, b.Do(fail(errTransient)))
	clock.Advance(11 * time.Second)

	require.Error(t, b.Do(fail(errTransient)))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	clock := newClock()
	b := newBreaker(clock, 1)

	require.Error(t, b.Do(fail(errTransient)))
	clock.Advance(11 * time.Second)

	err := b.Do(func() error {
		return b.Do(succeed)
	})
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestBreakerWindowClearsCounts(t *testing.T) {
	clock := newClock()
	b := newBreaker(clock, 3)

	require.Error(t, b.Do(fail(errTransient)))
	require.Error(t, b.Do(fail(errTransient)))

	clock.Advance(2 * time.Minute)
	require.Error(t, b.Do(fail(errTransient)))

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	clock := newClock()
	b := newBreaker(clock, 1)

	assert.Panics(t, func() {
		_ = b.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
