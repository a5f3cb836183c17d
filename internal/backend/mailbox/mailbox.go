// Package mailbox holds the questions a remote backend has outstanding for
// its participants, and the answers they send back.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cowrow/cowrow/internal/game"
	"github.com/cowrow/cowrow/internal/prompt"
)

// ErrNoPrompt is returned when an answer arrives for a question nobody asked.
var ErrNoPrompt = errors.New("no pending prompt")

// Notifier is told about every new question, for push transports.
type Notifier func(participant string, kind prompt.Kind, view game.SeatView)

// Mailbox routes answers to the backend request waiting for them.
type Mailbox struct {
	prompts *prompt.Registry

	mu     sync.Mutex
	views  map[string]game.SeatView     // latest pushed snapshot per participant
	asked  map[prompt.Key]game.SeatView // snapshot attached to each open question
	notify Notifier
}

// New creates an empty mailbox. notify may be nil.
func New(notify Notifier) *Mailbox {
	return &Mailbox{
		prompts: prompt.NewRegistry(),
		views:   make(map[string]game.SeatView),
		asked:   make(map[prompt.Key]game.SeatView),
		notify:  notify,
	}
}

// Ask posts a question and blocks until it is answered, replaced, dropped,
// or ctx ends. The returned error carries the cancellation cause.
func (m *Mailbox) Ask(ctx context.Context, participant string, kind prompt.Kind, view game.SeatView) (prompt.Reply, error) {
	return m.AskWhile(ctx, participant, kind, view, nil)
}

// AskWhile is Ask for a participant whose connection can go away. live is
// checked once the question is open, so a Drop racing the call either sees
// the question or live reports false; either way Ask returns at once with
// prompt.ErrParticipantGone.
func (m *Mailbox) AskWhile(ctx context.Context, participant string, kind prompt.Kind, view game.SeatView, live func() bool) (prompt.Reply, error) {
	key := prompt.Key{Participant: participant, Kind: kind}
	p := m.prompts.Open(ctx, key)
	m.mu.Lock()
	m.asked[key] = view
	m.mu.Unlock()
	defer func() {
		m.prompts.Close(p, context.Canceled)
		m.mu.Lock()
		if !m.prompts.Has(key) {
			delete(m.asked, key)
		}
		m.mu.Unlock()
	}()

	if live != nil && !live() {
		return prompt.Reply{}, fmt.Errorf("%w: no connection", prompt.ErrParticipantGone)
	}
	if m.notify != nil {
		m.notify(participant, kind, view)
	}
	return p.Wait()
}

// Answer resolves the open question of the given kind.
func (m *Mailbox) Answer(participant string, kind prompt.Kind, reply prompt.Reply) error {
	if !m.prompts.Resolve(prompt.Key{Participant: participant, Kind: kind}, reply) {
		return ErrNoPrompt
	}
	return nil
}

// Pending lists the kinds of question open for participant.
func (m *Mailbox) Pending(participant string) []prompt.Kind {
	return m.prompts.Kinds(participant)
}

// Question returns the snapshot sent with an open question.
func (m *Mailbox) Question(participant string, kind prompt.Kind) (game.SeatView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.asked[prompt.Key{Participant: participant, Kind: kind}]
	return v, ok
}

// Store keeps the latest snapshot pushed to participant.
func (m *Mailbox) Store(participant string, view game.SeatView) {
	m.mu.Lock()
	m.views[participant] = view
	m.mu.Unlock()
}

// Latest returns the last snapshot stored for participant.
func (m *Mailbox) Latest(participant string) (game.SeatView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.views[participant]
	return v, ok
}

// Drop fails every question open for participant with cause.
func (m *Mailbox) Drop(participant string, cause error) {
	m.prompts.CancelParticipant(participant, cause)
}

// DropAll fails every open question with cause.
func (m *Mailbox) DropAll(cause error) {
	m.prompts.CancelAll(cause)
}
