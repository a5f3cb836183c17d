package engine

import (
	"fmt"
	"math"
)

// Board geometry and table limits.
const (
	NumRows   = 4
	MaxRowLen = 5
	MaxSeats  = 10
)

// Rules holds configurable game rule settings.
type Rules struct {
	Seats            int // number of seats at the table
	CardCount        int // ranks 1..CardCount
	HandSize         int // cards dealt per seat, and tricks per round
	CardPenalty      int // penalty carried by every card
	PenaltyThreshold int // a round ending with any score >= this ends the match
}

// DefaultRules returns the standard table: four seats, 104 cards worth 3 each, match to 66.
func DefaultRules() Rules {
	return Rules{
		Seats:            4,
		CardCount:        104,
		HandSize:         10,
		CardPenalty:      3,
		PenaltyThreshold: 66,
	}
}

// Validate checks that a round can always be dealt with these rules.
func (r Rules) Validate() error {
	switch {
	case r.Seats < 1 || r.Seats > MaxSeats:
		return fmt.Errorf("seats must be in 1..%d, got %d", MaxSeats, r.Seats)
	case r.HandSize < 1:
		return fmt.Errorf("hand size must be positive, got %d", r.HandSize)
	case r.CardPenalty < 0:
		return fmt.Errorf("card penalty must not be negative, got %d", r.CardPenalty)
	case r.PenaltyThreshold < 1:
		return fmt.Errorf("penalty threshold must be positive, got %d", r.PenaltyThreshold)
	case r.CardPenalty > math.MaxUint8:
		return fmt.Errorf("card penalty %d exceeds %d", r.CardPenalty, math.MaxUint8)
	case r.CardCount > math.MaxUint8:
		return fmt.Errorf("card count %d exceeds the rank range", r.CardCount)
	}
	if need := NumRows + r.Seats*r.HandSize; need > r.CardCount {
		return fmt.Errorf("deck of %d cards cannot seat %d players with %d cards each (need %d)",
			r.CardCount, r.Seats, r.HandSize, need)
	}
	return nil
}
