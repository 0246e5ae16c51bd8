package router

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/internal/domain"
	"payguard/internal/policy"
	dErrors "payguard/pkg/domain-errors"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to State }{
		{StateReceived, StateEvaluated},
		{StateEvaluated, StateConsentRequested},
		{StateEvaluated, StateTerminated},
		{StateEscalated, StateConsentRequested},
		{StateReauthRequested, StateTerminated},
		{StateConsentRequested, StateExecuted},
		{StateConsentRequested, StateReceived},
		{StatePaused, StateReceived},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	illegal := []struct{ from, to State }{
		{StateReceived, StateConsentRequested},
		{StateEscalated, StateExecuted},
		{StatePaused, StateConsentRequested},
		{StateExecuted, StateReceived},
		{StateTerminated, StateReceived},
		{StateTerminated, StateExecuted},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesHaveNoExit(t *testing.T) {
	for _, st := range []State{StateExecuted, StateTerminated} {
		assert.True(t, st.IsTerminal())
		assert.Empty(t, transitions[st])
	}
	assert.False(t, StatePaused.IsTerminal())
}

func TestTarget(t *testing.T) {
	cases := []struct {
		decision policy.Decision
		typ      domain.IntentType
		want     State
	}{
		{policy.DecisionApprove, domain.IntentPayment, StateConsentRequested},
		{policy.DecisionApprove, domain.IntentHistory, StateExecuted},
		{policy.DecisionEscalate, domain.IntentPayment, StateEscalated},
		{policy.DecisionRequireReauth, domain.IntentPayment, StateReauthRequested},
		{policy.DecisionCooldown, domain.IntentPayment, StatePaused},
		{policy.DecisionDeny, domain.IntentPayment, StateTerminated},
		{policy.DecisionDeny, domain.IntentAnalysis, StateTerminated},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, target(tc.decision, tc.typ), "%s/%s", tc.decision, tc.typ)
	}
}

func TestRecordTransition(t *testing.T) {
	at := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	rec := &Record{IntentID: "i-1", State: StateReceived}

	require.NoError(t, rec.transition(StateEvaluated, at))
	err := rec.transition(StateExecuted, at)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	assert.Equal(t, StateEvaluated, rec.State, "a refused move leaves the record alone")
	assert.Len(t, rec.Transitions, 1)

	c := rec.clone()
	require.NoError(t, c.transition(StateTerminated, at))
	assert.Len(t, rec.Transitions, 1, "clone does not share history")
}

func TestOutcomeRetryAfterOnlyWhenPaused(t *testing.T) {
	until := time.Date(2026, 3, 2, 14, 35, 0, 0, time.UTC)
	paused := outcomeOf(&Record{IntentID: "i-1", State: StatePaused, PausedUntil: until})
	assert.Equal(t, until, paused.RetryAfter)

	done := outcomeOf(&Record{IntentID: "i-2", State: StateTerminated, PausedUntil: until})
	assert.True(t, done.RetryAfter.IsZero())
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	t.Run("serializes one key", func(t *testing.T) {
		var inside, peak atomic.Int32
		var wg sync.WaitGroup
		for range 16 {
			wg.Go(func() {
				unlock := k.Lock("user-1")
				n := inside.Add(1)
				if n > peak.Load() {
					peak.Store(n)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				unlock()
			})
		}
		wg.Wait()
		assert.Equal(t, int32(1), peak.Load())
	})

	t.Run("distinct keys do not block each other", func(t *testing.T) {
		unlockA := k.Lock("user-a")
		done := make(chan struct{})
		go func() {
			unlock := k.Lock("user-b")
			unlock()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on user-b waited for user-a")
		}
		unlockA()
	})

	assert.Zero(t, k.size(), "entries are dropped after the last unlock")
}
