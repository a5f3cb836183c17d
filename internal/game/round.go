package game

import (
	"context"
	"fmt"

	"github.com/cowrow/cowrow/engine"
	"github.com/cowrow/cowrow/internal/prompt"
	"github.com/sirupsen/logrus"
)

// playRound deals a fresh deck and plays HandSize tricks.
func (m *Match) playRound(ctx context.Context) error {
	deck := engine.NewDeck(m.Rules)
	if err := m.shuffle(deck); err != nil {
		return err
	}
	board, err := engine.NewBoard(&deck)
	if err != nil {
		return err
	}
	m.board = board
	for _, s := range m.seats {
		s.Hand = nil
	}
	if err := engine.Deal(&deck, m.seats, m.Rules.HandSize); err != nil {
		return err
	}

	m.trick = 0
	m.phase = PhaseChoosing
	m.logAction(-1, ActionRoundStart, map[string]any{"round": m.round, "rows": m.board.ActiveCards()})
	m.log.WithField("round", m.round).Info("Round started.")
	m.publish()

	for t := 1; t <= m.Rules.HandSize; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.trick = t
		if err := m.playTrick(ctx); err != nil {
			return fmt.Errorf("trick %d: %w", t, err)
		}
	}

	scores := make([]int, len(m.seats))
	for i, s := range m.seats {
		scores[i] = s.Score
	}
	m.logAction(-1, ActionRoundEnd, map[string]any{"round": m.round, "scores": scores})
	m.log.WithFields(logrus.Fields{"round": m.round, "scores": scores}).Info("Round finished.")
	return nil
}

// playTrick collects one card per seat in seat order, then places them in
// ascending rank order.
func (m *Match) playTrick(ctx context.Context) error {
	m.phase = PhaseChoosing
	plays := make([]engine.Play, 0, len(m.seats))
	for _, s := range m.seats {
		card, err := s.Choose(m.chooseCard(ctx, s))
		if err != nil {
			return fmt.Errorf("seat %d: %w", s.Index, err)
		}
		plays = append(plays, engine.Play{Seat: s.Index, Card: card})
		m.logAction(s.Index, ActionCardPlayed, map[string]any{"rank": card.Rank})
	}

	m.phase = PhaseResolving
	engine.SortPlays(plays)
	for _, p := range plays {
		s := m.seats[p.Seat]
		placed, err := m.board.Resolve(p, s, func() int { return m.chooseRow(ctx, s) })
		if err != nil {
			return fmt.Errorf("seat %d: %w", s.Index, err)
		}
		m.logAction(p.Seat, ActionCardPlaced, map[string]any{
			"rank":    placed.Card.Rank,
			"row":     placed.Row,
			"kind":    placed.Kind.String(),
			"penalty": placed.Penalty,
		})
		if placed.Penalty > 0 {
			m.log.WithFields(logrus.Fields{
				"seat":    p.Seat,
				"row":     placed.Row,
				"penalty": placed.Penalty,
				"score":   s.Score,
			}).Info("Row claimed.")
		}
	}
	m.publish()
	return nil
}

// chooseCard returns a valid index into s.Hand.
func (m *Match) chooseCard(ctx context.Context, s *engine.Seat) int {
	participant, backend, _ := m.Table.Binding(s.Index)
	view := m.snapshot(s.Index)
	return prompt.Ask(ctx, m.prompts, prompt.Request[int]{
		Seat:        s.Index,
		Participant: participant,
		Kind:        prompt.KindCardChoice,
		Send: func(ctx context.Context) (int, error) {
			return backend.RequestCardChoice(ctx, participant, view)
		},
		Validate: func(i int) error {
			if i < 0 || i >= len(s.Hand) {
				return fmt.Errorf("%w: hand index %d of %d", engine.ErrInvalidChoice, i, len(s.Hand))
			}
			return nil
		},
		Fallback:   func() int { return m.intn(len(s.Hand)) },
		Disconnect: func() { m.Table.Unbind(s.Index, participant) },
	})
}

// chooseRow returns the row s takes when its card fits nowhere.
func (m *Match) chooseRow(ctx context.Context, s *engine.Seat) int {
	participant, backend, _ := m.Table.Binding(s.Index)
	view := m.snapshot(s.Index)
	return prompt.Ask(ctx, m.prompts, prompt.Request[int]{
		Seat:        s.Index,
		Participant: participant,
		Kind:        prompt.KindRowChoice,
		Send: func(ctx context.Context) (int, error) {
			return backend.RequestRowChoice(ctx, participant, view)
		},
		Validate: func(i int) error {
			if i < 0 || i >= engine.NumRows {
				return fmt.Errorf("%w: row %d", engine.ErrInvalidChoice, i)
			}
			return nil
		},
		Fallback:   func() int { return m.intn(engine.NumRows) },
		Disconnect: func() { m.Table.Unbind(s.Index, participant) },
	})
}
