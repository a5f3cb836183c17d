// Package prompt asks seat-controlling backends for decisions without letting a
// slow or absent participant stall the match.
package prompt

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Orchestrator races backend requests against a per-prompt timeout.
// It holds no game rules; callers supply validation and fallback.
type Orchestrator struct {
	Timeout time.Duration // zero waits for the backend indefinitely

	log     *logrus.Entry
	pending *Registry
	after   func(time.Duration) <-chan time.Time
}

// NewOrchestrator creates an orchestrator with the given timeout.
func NewOrchestrator(timeout time.Duration, log *logrus.Entry) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{Timeout: timeout, log: log, pending: NewRegistry(), after: time.After}
}

// Pending exposes the orchestrator's registry of in-flight prompts.
func (o *Orchestrator) Pending() *Registry { return o.pending }

// CancelAll cancels every in-flight prompt; their callers fall back.
func (o *Orchestrator) CancelAll(cause error) {
	o.pending.CancelAll(cause)
}

// Request describes one decision. An empty Participant means the seat is
// unbound and Fallback is used without contacting any backend.
type Request[T any] struct {
	Seat        int
	Participant string
	Kind        Kind

	// Send asks the backend. It must return once ctx is done.
	Send func(ctx context.Context) (T, error)
	// Validate rejects out-of-range answers. Nil accepts everything.
	Validate func(T) error
	// Fallback produces the automatic decision.
	Fallback func() T
	// Disconnect is called when the participant timed out or went away.
	Disconnect func()
}

// Outcome reports how a decision was reached.
type Outcome uint8

const (
	OutcomeAnswered Outcome = iota
	OutcomeUnbound
	OutcomeTimeout
	OutcomeInvalid
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnswered:
		return "answered"
	case OutcomeUnbound:
		return "unbound"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Ask obtains a decision for req, falling back rather than failing.
func Ask[T any](ctx context.Context, o *Orchestrator, req Request[T]) T {
	v, _ := AskOutcome(ctx, o, req)
	return v
}

// AskOutcome is Ask that also reports how the value was obtained.
//
// The backend reply and the timer race; the first to settle wins. When both
// are ready at once the reply wins. A reply failing Validate is replaced by
// Fallback with no retry, and the seat stays bound.
func AskOutcome[T any](ctx context.Context, o *Orchestrator, req Request[T]) (T, Outcome) {
	if req.Participant == "" {
		return req.Fallback(), OutcomeUnbound
	}
	log := o.log.WithFields(logrus.Fields{
		"seat":        req.Seat,
		"participant": req.Participant,
		"kind":        req.Kind,
	})

	// A new prompt resets the participant's clock: drop anything still open for them.
	o.pending.CancelParticipant(req.Participant, ErrSuperseded)
	p := o.pending.Open(ctx, Key{Participant: req.Participant, Kind: req.Kind})
	defer o.pending.Close(p, context.Canceled)

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := req.Send(p.Context())
		done <- result{v: v, err: err}
	}()

	var expired <-chan time.Time
	if o.Timeout > 0 {
		expired = o.after(o.Timeout)
	}

	var res result
	select {
	case res = <-done:
	case <-expired:
		select {
		case res = <-done:
		default:
			log.WithError(ErrParticipantTimeout).Warn("Prompt timed out, seat switches to autoplay.")
			disconnect(req)
			return req.Fallback(), OutcomeTimeout
		}
	case <-p.Context().Done():
		got := false
		select {
		case res = <-done:
			got = true
		default:
		}
		if !got || res.err != nil {
			log.WithField("cause", context.Cause(p.Context())).Info("Prompt cancelled, using autoplay.")
			return req.Fallback(), OutcomeCancelled
		}
	}

	if res.err != nil {
		if errors.Is(res.err, ErrParticipantGone) {
			log.WithError(res.err).Warn("Participant left during prompt, seat switches to autoplay.")
			disconnect(req)
			return req.Fallback(), OutcomeTimeout
		}
		log.WithError(res.err).Error("Backend failed to answer prompt, using autoplay.")
		return req.Fallback(), OutcomeFailed
	}
	if req.Validate != nil {
		if err := req.Validate(res.v); err != nil {
			log.WithError(err).WithField("answer", res.v).Warn("Rejected answer, using autoplay for this decision.")
			return req.Fallback(), OutcomeInvalid
		}
	}
	return res.v, OutcomeAnswered
}

func disconnect[T any](req Request[T]) {
	if req.Disconnect != nil {
		req.Disconnect()
	}
}
