// Package game runs matches: it owns engine state on a single goroutine and
// talks to participants through backends.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cowrow/cowrow/engine"
	"github.com/cowrow/cowrow/internal/prompt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const notifyTimeout = 5 * time.Second

// Options configures a Match.
type Options struct {
	Rules         engine.Rules
	PromptTimeout time.Duration
	Backends      []Backend
	Recorder      Recorder        // optional action log sink
	Results       ResultPublisher // optional
	Logger        *logrus.Entry

	// Rand returns a uniform int in [0, n). Used for automatic decisions.
	Rand func(n int) int
	// Shuffle permutes a fresh deck. Defaults to engine.Shuffle.
	Shuffle func([]engine.Card) error
}

// Match is the context object for successive matches at one table.
// Everything except Table is owned by the goroutine calling Run.
type Match struct {
	ID    uuid.UUID
	Rules engine.Rules
	Table *Table

	backends []Backend
	recorder Recorder
	results  ResultPublisher
	prompts  *prompt.Orchestrator
	intn     func(int) int
	shuffle  func([]engine.Card) error
	base     *logrus.Entry
	log      *logrus.Entry

	seats       []*engine.Seat
	board       engine.Board
	round       int
	trick       int
	phase       Phase
	actionIndex int
}

// NewMatch validates the rules and registers the match with every backend.
func NewMatch(opts Options) (*Match, error) {
	if err := opts.Rules.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Match{
		Rules:    opts.Rules,
		Table:    NewTable(opts.Rules.Seats, log),
		backends: opts.Backends,
		recorder: opts.Recorder,
		results:  opts.Results,
		prompts:  prompt.NewOrchestrator(opts.PromptTimeout, log),
		intn:     opts.Rand,
		shuffle:  opts.Shuffle,
		base:     log,
		log:      log,
		seats:    engine.NewSeats(opts.Rules.Seats),
		phase:    PhaseWaiting,
	}
	if m.intn == nil {
		m.intn = rand.IntN
	}
	if m.shuffle == nil {
		m.shuffle = engine.Shuffle
	}
	for _, b := range m.backends {
		b.Listen(m.Table)
	}
	return m, nil
}

// SeatView returns the latest snapshot for a bound participant.
func (m *Match) SeatView(participantID string) (SeatView, error) {
	return m.Table.SeatView(participantID)
}

// Run plays matches until nobody wants another one or ctx is done.
// It returns nil when the participants stop, ctx.Err() on cancellation.
func (m *Match) Run(ctx context.Context) error {
	for {
		if err := m.waitForParticipant(ctx); err != nil {
			return err
		}
		result, err := m.play(ctx)
		if err != nil {
			return err
		}
		m.finish(ctx, result)
		again := m.offerRematch(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if !again {
			m.log.Info("Nobody wants another match, stopping.")
			return nil
		}
	}
}

func (m *Match) waitForParticipant(ctx context.Context) error {
	m.phase = PhaseWaiting
	for !m.Table.AnyBound() {
		m.base.Info("Waiting for a participant to join.")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.Table.Joined():
		}
	}
	return nil
}

// play runs one match to its end and returns the standings.
func (m *Match) play(ctx context.Context) (Result, error) {
	m.ID = uuid.New()
	m.log = m.base.WithField("match", m.ID)
	m.actionIndex = 0
	m.round = 0
	m.trick = 0
	m.board = engine.Board{}
	engine.ResetSeats(m.seats)

	m.logAction(-1, ActionMatchStart, map[string]any{
		"seats":     m.Rules.Seats,
		"threshold": m.Rules.PenaltyThreshold,
	})
	m.log.Info("Match started.")

	for {
		m.round++
		if err := m.playRound(ctx); err != nil {
			return Result{}, fmt.Errorf("match %s round %d: %w", m.ID, m.round, err)
		}
		if loser, ok := engine.Loser(m.seats, m.Rules.PenaltyThreshold); ok {
			return m.result(loser), nil
		}
	}
}

func (m *Match) result(loser *engine.Seat) Result {
	names := m.Table.Names()
	res := Result{
		MatchID: m.ID,
		Rounds:  m.round,
		Loser:   Standing{Seat: loser.Index, Name: names[loser.Index], Score: loser.Score},
	}
	for _, s := range engine.Standings(m.seats) {
		res.Standings = append(res.Standings, Standing{Seat: s.Index, Name: names[s.Index], Score: s.Score})
	}
	return res
}

// finish tells every backend and the result publisher that the match is over.
func (m *Match) finish(ctx context.Context, result Result) {
	m.phase = PhaseEnded
	m.prompts.CancelAll(prompt.ErrMatchEnded)
	m.publish()

	standings := make([]map[string]any, 0, len(result.Standings))
	for _, s := range result.Standings {
		standings = append(standings, map[string]any{"seat": s.Seat, "score": s.Score})
	}
	m.logAction(-1, ActionMatchEnd, map[string]any{
		"loser":     result.Loser.Seat,
		"rounds":    result.Rounds,
		"standings": standings,
	})
	m.log.WithFields(logrus.Fields{
		"loser":  result.Loser.Name,
		"score":  result.Loser.Score,
		"rounds": result.Rounds,
	}).Info("Match ended.")

	for _, b := range m.backends {
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		if err := b.MatchEnded(nctx, result); err != nil {
			m.log.WithError(err).WithField("backend", b.Name()).Error("Backend failed to handle match end.")
		}
		cancel()
	}
	if m.results != nil {
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		if err := m.results.PublishResult(nctx, result); err != nil {
			m.log.WithError(err).Error("Failed to publish match result.")
		}
		cancel()
	}
}

// offerRematch asks every bound seat whether to play again and unbinds
// those that decline. It reports whether anyone stays.
func (m *Match) offerRematch(ctx context.Context) bool {
	staying := 0
	for i := range m.seats {
		participant, backend, ok := m.Table.Binding(i)
		if !ok {
			continue
		}
		seat := i
		again := prompt.Ask(ctx, m.prompts, prompt.Request[bool]{
			Seat:        seat,
			Participant: participant,
			Kind:        prompt.KindPlayAgain,
			Send: func(ctx context.Context) (bool, error) {
				return backend.RequestPlayAgain(ctx, participant)
			},
			Fallback:   func() bool { return false },
			Disconnect: func() { m.Table.Unbind(seat, participant) },
		})
		m.logAction(seat, ActionPlayAgain, map[string]any{"playAgain": again})
		if again {
			staying++
			continue
		}
		m.Table.Unbind(seat, participant)
	}
	return staying > 0
}

// publish stores a fresh view for every seat and pushes it to bound ones.
func (m *Match) publish() {
	for i := range m.seats {
		v := m.snapshot(i)
		m.Table.storeView(i, v)
		participant, backend, ok := m.Table.Binding(i)
		if !ok {
			continue
		}
		backend.SeatStateChanged(participant, v.Clone())
	}
}

// IsShutdown reports whether err only signals that Run was asked to stop.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
