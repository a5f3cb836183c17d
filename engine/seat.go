package engine

import (
	"fmt"
	"sort"
)

// Seat holds one player slot's hand and accumulated penalty.
// Who controls the seat is tracked by the service layer.
type Seat struct {
	Index int
	Hand  []Card
	Score int
}

// NewSeats allocates n seats with empty hands.
func NewSeats(n int) []*Seat {
	seats := make([]*Seat, n)
	for i := range seats {
		seats[i] = &Seat{Index: i}
	}
	return seats
}

// ResetSeats zeroes every score and empties every hand. Called once per match.
func ResetSeats(seats []*Seat) {
	for _, s := range seats {
		s.Score = 0
		s.Hand = nil
	}
}

// Choose removes and returns the card at handIndex.
func (s *Seat) Choose(handIndex int) (Card, error) {
	if handIndex < 0 || handIndex >= len(s.Hand) {
		return Card{}, fmt.Errorf("%w: hand index %d of %d", ErrInvalidChoice, handIndex, len(s.Hand))
	}
	return TakeCard(&s.Hand, handIndex)
}

// Deal moves count cards from the end of deck to the seats round-robin,
// seat 0 first on every pass.
func Deal(deck *[]Card, seats []*Seat, count int) error {
	for i := 0; i < count; i++ {
		for _, s := range seats {
			if err := MoveCard(deck, Last, &s.Hand); err != nil {
				return fmt.Errorf("deal card %d to seat %d: %w", i, s.Index, err)
			}
		}
	}
	return nil
}

// Standings returns the seats ordered by ascending score; lower is better.
// Seats with equal scores keep seat order.
func Standings(seats []*Seat) []*Seat {
	out := append([]*Seat(nil), seats...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}

// Loser returns the first seat at or over threshold, if any.
func Loser(seats []*Seat, threshold int) (*Seat, bool) {
	for _, s := range seats {
		if s.Score >= threshold {
			return s, true
		}
	}
	return nil, false
}
