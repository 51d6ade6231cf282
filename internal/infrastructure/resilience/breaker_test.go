package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDial = errors.New("dial failed")

func tripAfter(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

func fail(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_ = b.Do(func() error { return errDial })
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		calls         []bool // true = success
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{Window: time.Minute, Cooldown: time.Minute},
			calls:         []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			settings:      Settings{Window: time.Minute, Cooldown: time.Minute, Trip: tripAfter(3)},
			calls:         []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "success resets the streak",
			settings:      Settings{Window: time.Minute, Cooldown: time.Minute, Trip: tripAfter(2)},
			calls:         []bool{false, true, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("host", tt.settings)
			for _, success := range tt.calls {
				_ = breaker.Do(func() error {
					if success {
						return nil
					}
					return errDial
				})
			}
			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("host", Settings{})

	require.NoError(t, breaker.Do(func() error { return nil }))
	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.Successes)
	assert.Equal(t, uint32(0), counts.Failures)

	assert.ErrorIs(t, breaker.Do(func() error { return errDial }), errDial)
	counts = breaker.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.Failures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerOpenRejects(t *testing.T) {
	breaker := New("host", Settings{Cooldown: time.Minute, Trip: tripAfter(2)})
	fail(breaker, 2)
	require.Equal(t, StateOpen, breaker.State())

	called := false
	err := breaker.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpen(t *testing.T) {
	breaker := New("host", Settings{MaxProbes: 2, Cooldown: 30 * time.Millisecond, Trip: tripAfter(2)})
	fail(breaker, 2)
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	for i := 0; i < 2; i++ {
		require.NoError(t, breaker.Do(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	breaker := New("host", Settings{Cooldown: 30 * time.Millisecond, Trip: tripAfter(2)})
	fail(breaker, 2)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	fail(breaker, 1)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerPermanentErrors(t *testing.T) {
	errNotFound := errors.New("not found")
	breaker := New("host", Settings{
		Trip:      tripAfter(1),
		Permanent: func(err error) bool { return errors.Is(err, errNotFound) },
	})

	assert.ErrorIs(t, breaker.Do(func() error { return errNotFound }), errNotFound)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("host", Settings{Trip: tripAfter(1)})

	assert.Panics(t, func() {
		_ = breaker.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}

func TestExecute(t *testing.T) {
	breaker := New("host", Settings{})

	n, err := Execute(breaker, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestBreakerCallbacks(t *testing.T) {
	var transitions []string

	breaker := New("host", Settings{
		Cooldown: 10 * time.Millisecond,
		Trip:     tripAfter(2),
		OnStateChange: func(name string, from State, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	fail(breaker, 2)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())

	assert.Equal(t, []string{"closed->open", "open->half-open"}, transitions)
}
