package prompt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(timeout time.Duration) (*Orchestrator, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return NewOrchestrator(timeout, logrus.NewEntry(logger)), hook
}

func indexRequest(participant string, send func(ctx context.Context) (int, error)) Request[int] {
	return Request[int]{
		Seat:        1,
		Participant: participant,
		Kind:        KindCardChoice,
		Send:        send,
		Validate: func(i int) error {
			if i < 0 || i >= 10 {
				return errors.New("out of range")
			}
			return nil
		},
		Fallback: func() int { return 7 },
	}
}

// TestAskUnboundUsesFallback verifies no backend call happens for an unbound seat.
func TestAskUnboundUsesFallback(t *testing.T) {
	o, _ := newTestOrchestrator(time.Second)
	req := indexRequest("", func(context.Context) (int, error) {
		t.Fatal("Send called for unbound seat")
		return 0, nil
	})
	v, outcome := AskOutcome(context.Background(), o, req)
	assert.Equal(t, 7, v)
	assert.Equal(t, OutcomeUnbound, outcome)
}

// TestAskAnswered verifies a valid reply is returned as-is.
func TestAskAnswered(t *testing.T) {
	o, _ := newTestOrchestrator(time.Second)
	v, outcome := AskOutcome(context.Background(), o, indexRequest("alice", func(context.Context) (int, error) {
		return 3, nil
	}))
	assert.Equal(t, 3, v)
	assert.Equal(t, OutcomeAnswered, outcome)
	assert.Zero(t, o.Pending().Len(), "pending prompt should be removed after resolution")
}

// TestAskTimeoutDisconnects verifies a silent backend demotes the seat and falls back.
func TestAskTimeoutDisconnects(t *testing.T) {
	o, hook := newTestOrchestrator(20 * time.Millisecond)
	var disconnected atomic.Bool
	sendReturned := make(chan struct{})
	req := indexRequest("bob", func(ctx context.Context) (int, error) {
		defer close(sendReturned)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	req.Disconnect = func() { disconnected.Store(true) }

	start := time.Now()
	v, outcome := AskOutcome(context.Background(), o, req)
	assert.Equal(t, 7, v)
	assert.Equal(t, OutcomeTimeout, outcome)
	assert.True(t, disconnected.Load())
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-sendReturned:
	case <-time.After(time.Second):
		t.Fatal("backend request was not cancelled after timeout")
	}
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

// TestAskReplyWinsTie verifies a reply already delivered when the timer fires
// is used and the seat stays bound.
func TestAskReplyWinsTie(t *testing.T) {
	for i := 0; i < 50; i++ {
		o, _ := newTestOrchestrator(time.Minute)
		sent := make(chan struct{})
		o.after = func(time.Duration) <-chan time.Time {
			<-sent
			// Let the reply land in the result channel before the timer fires.
			time.Sleep(5 * time.Millisecond)
			fired := make(chan time.Time, 1)
			fired <- time.Now()
			return fired
		}
		var disconnected atomic.Bool
		req := indexRequest("bob", func(context.Context) (int, error) {
			defer close(sent)
			return 3, nil
		})
		req.Disconnect = func() { disconnected.Store(true) }

		v, outcome := AskOutcome(context.Background(), o, req)
		require.Equal(t, 3, v, "iteration %d", i)
		require.Equal(t, OutcomeAnswered, outcome, "iteration %d", i)
		require.False(t, disconnected.Load(), "iteration %d", i)
		require.Zero(t, o.Pending().Len())
	}
}

// TestAskInvalidKeepsBinding verifies a bad answer falls back without disconnecting.
func TestAskInvalidKeepsBinding(t *testing.T) {
	o, _ := newTestOrchestrator(time.Second)
	req := indexRequest("carol", func(context.Context) (int, error) { return 42, nil })
	req.Disconnect = func() { t.Fatal("invalid answer must not unbind the seat") }
	v, outcome := AskOutcome(context.Background(), o, req)
	assert.Equal(t, 7, v)
	assert.Equal(t, OutcomeInvalid, outcome)
}

// TestAskParticipantGone verifies a disconnect error is handled like a timeout.
func TestAskParticipantGone(t *testing.T) {
	o, _ := newTestOrchestrator(time.Second)
	var disconnected bool
	req := indexRequest("dave", func(context.Context) (int, error) {
		return 0, ErrParticipantGone
	})
	req.Disconnect = func() { disconnected = true }
	v, outcome := AskOutcome(context.Background(), o, req)
	assert.Equal(t, 7, v)
	assert.Equal(t, OutcomeTimeout, outcome)
	assert.True(t, disconnected)
}

// TestAskBackendErrorKeepsBinding verifies other errors fall back but keep the seat bound.
func TestAskBackendErrorKeepsBinding(t *testing.T) {
	o, _ := newTestOrchestrator(time.Second)
	req := indexRequest("erin", func(context.Context) (int, error) {
		return 0, errors.New("write failed")
	})
	req.Disconnect = func() { t.Fatal("transport error must not unbind the seat") }
	_, outcome := AskOutcome(context.Background(), o, req)
	assert.Equal(t, OutcomeFailed, outcome)
}

// TestAskCancelAll verifies match-end cancellation releases a waiting prompt.
func TestAskCancelAll(t *testing.T) {
	o, _ := newTestOrchestrator(0)
	started := make(chan struct{})
	req := indexRequest("frank", func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, context.Cause(ctx)
	})
	go func() {
		<-started
		o.CancelAll(ErrMatchEnded)
	}()
	v, outcome := AskOutcome(context.Background(), o, req)
	assert.Equal(t, 7, v)
	assert.Equal(t, OutcomeCancelled, outcome)
}

// TestAskSupersedesPreviousPrompt verifies a new prompt cancels the participant's older one.
func TestAskSupersedesPreviousPrompt(t *testing.T) {
	o, _ := newTestOrchestrator(0)
	started := make(chan struct{})
	firstDone := make(chan Outcome, 1)
	go func() {
		_, outcome := AskOutcome(context.Background(), o, Request[bool]{
			Participant: "gina",
			Kind:        KindPlayAgain,
			Send: func(ctx context.Context) (bool, error) {
				close(started)
				<-ctx.Done()
				return false, context.Cause(ctx)
			},
			Fallback: func() bool { return false },
		})
		firstDone <- outcome
	}()
	<-started

	v := Ask(context.Background(), o, indexRequest("gina", func(context.Context) (int, error) { return 2, nil }))
	assert.Equal(t, 2, v)
	select {
	case outcome := <-firstDone:
		assert.Equal(t, OutcomeCancelled, outcome)
	case <-time.After(time.Second):
		t.Fatal("older prompt was not superseded")
	}
}

// TestAskDoesNotStallOtherSeats verifies sequential prompts proceed after a timeout.
func TestAskDoesNotStallOtherSeats(t *testing.T) {
	o, _ := newTestOrchestrator(10 * time.Millisecond)
	silent := indexRequest("slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	quick := indexRequest("fast", func(context.Context) (int, error) { return 1, nil })

	assert.Equal(t, 7, Ask(context.Background(), o, silent))
	assert.Equal(t, 1, Ask(context.Background(), o, quick))
}
