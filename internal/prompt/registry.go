package prompt

import (
	"context"
	"errors"
	"sync"
)

// Kind names a decision a participant can be asked for.
type Kind string

const (
	KindCardChoice Kind = "card-choice"
	KindRowChoice  Kind = "row-choice"
	KindPlayAgain  Kind = "play-again"
)

var (
	// ErrParticipantTimeout marks a prompt that outlived the orchestrator's timeout.
	ErrParticipantTimeout = errors.New("participant timed out")
	// ErrParticipantGone is returned by backends whose participant disconnected mid-prompt.
	ErrParticipantGone = errors.New("participant disconnected")
	// ErrSuperseded cancels a pending prompt replaced by a newer one for the same participant.
	ErrSuperseded = errors.New("prompt superseded")
	// ErrMatchEnded cancels prompts still open when a match finishes.
	ErrMatchEnded = errors.New("match ended")
)

// Key identifies a pending prompt. At most one Pending exists per Key.
type Key struct {
	Participant string
	Kind        Kind
}

// Reply carries a participant's answer. Index is used for card and row
// choices, PlayAgain for the play-again prompt.
type Reply struct {
	Index     int
	PlayAgain bool
}

// Pending is one outstanding prompt. It resolves at most once.
type Pending struct {
	Key    Key
	ctx    context.Context
	cancel context.CancelCauseFunc
	reply  chan Reply
}

// Context is cancelled when the prompt is resolved elsewhere, replaced, or closed.
func (p *Pending) Context() context.Context { return p.ctx }

// Wait blocks until the prompt is answered or its context ends.
func (p *Pending) Wait() (Reply, error) {
	select {
	case r := <-p.reply:
		return r, nil
	case <-p.ctx.Done():
		// An answer may have landed right before cancellation.
		select {
		case r := <-p.reply:
			return r, nil
		default:
		}
		return Reply{}, context.Cause(p.ctx)
	}
}

// Registry tracks pending prompts by Key.
type Registry struct {
	mu      sync.Mutex
	pending map[Key]*Pending
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[Key]*Pending)}
}

// Open registers a new prompt for key, cancelling any previous one with ErrSuperseded.
func (r *Registry) Open(ctx context.Context, key Key) *Pending {
	pctx, cancel := context.WithCancelCause(ctx)
	p := &Pending{Key: key, ctx: pctx, cancel: cancel, reply: make(chan Reply, 1)}

	r.mu.Lock()
	old := r.pending[key]
	r.pending[key] = p
	r.mu.Unlock()

	if old != nil {
		old.cancel(ErrSuperseded)
	}
	return p
}

// Resolve delivers reply to the prompt open under key and removes it.
// It reports false when nothing is pending for key.
func (r *Registry) Resolve(key Key, reply Reply) bool {
	r.mu.Lock()
	p, ok := r.pending[key]
	if ok {
		delete(r.pending, key)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	p.reply <- reply
	return true
}

// Close removes p if it is still the current prompt for its key and cancels it.
func (r *Registry) Close(p *Pending, cause error) {
	r.mu.Lock()
	if r.pending[p.Key] == p {
		delete(r.pending, p.Key)
	}
	r.mu.Unlock()
	p.cancel(cause)
}

// Has reports whether a prompt is pending for key.
func (r *Registry) Has(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[key]
	return ok
}

// Kinds lists the prompt kinds currently pending for a participant.
func (r *Registry) Kinds(participant string) []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Kind
	for _, k := range []Kind{KindCardChoice, KindRowChoice, KindPlayAgain} {
		if _, ok := r.pending[Key{Participant: participant, Kind: k}]; ok {
			out = append(out, k)
		}
	}
	return out
}

// CancelParticipant cancels every prompt pending for participant.
func (r *Registry) CancelParticipant(participant string, cause error) {
	r.cancelWhere(func(k Key) bool { return k.Participant == participant }, cause)
}

// CancelAll cancels every pending prompt.
func (r *Registry) CancelAll(cause error) {
	r.cancelWhere(func(Key) bool { return true }, cause)
}

// Len returns the number of pending prompts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Registry) cancelWhere(match func(Key) bool, cause error) {
	r.mu.Lock()
	var victims []*Pending
	for k, p := range r.pending {
		if match(k) {
			victims = append(victims, p)
			delete(r.pending, k)
		}
	}
	r.mu.Unlock()
	for _, p := range victims {
		p.cancel(cause)
	}
}
