// Package engine implements the rules of the cow-row penalty card game.
//
// It has no dependencies outside the standard library. State is held in plain
// slices and structs owned by a single caller; nothing in this package is safe
// for concurrent use.
package engine

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

var (
	// ErrNoCardAvailable is returned when a card is requested from an empty pile or
	// from an index the pile does not have. Callers treat it as a broken invariant.
	ErrNoCardAvailable = errors.New("no card available")
	// ErrInvalidChoice is returned when a participant picks a hand or row index out of range.
	ErrInvalidChoice = errors.New("invalid choice")
)

// Last selects the final card of a pile in TakeCard and MoveCard.
const Last = -1

// Card is a single card. Rank is unique across the deck.
type Card struct {
	Rank    uint8 `json:"rank"`
	Penalty uint8 `json:"penalty"`
}

func (c Card) String() string {
	return fmt.Sprintf("%d(%d)", c.Rank, c.Penalty)
}

// NewDeck returns the full deck in rank order, 1..CardCount.
func NewDeck(r Rules) []Card {
	deck := make([]Card, 0, r.CardCount)
	for rank := 1; rank <= r.CardCount; rank++ {
		deck = append(deck, Card{Rank: uint8(rank), Penalty: uint8(r.CardPenalty)})
	}
	return deck
}

// Shuffle permutes cards in place using crypto/rand.
func Shuffle(cards []Card) error {
	return ShuffleWith(rand.Reader, cards)
}

// ShuffleWith runs a Fisher-Yates shuffle drawing from src.
// Each swap index is drawn uniformly from [0, i] without modulo bias.
func ShuffleWith(src io.Reader, cards []Card) error {
	for i := len(cards) - 1; i > 0; i-- {
		n, err := rand.Int(src, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("shuffle: %w", err)
		}
		j := int(n.Int64())
		cards[i], cards[j] = cards[j], cards[i]
	}
	return nil
}

// TakeCard removes and returns a card from the pile. index == Last removes the
// final card; any other index removes that card and keeps the rest in order.
func TakeCard(from *[]Card, index int) (Card, error) {
	pile := *from
	if len(pile) == 0 {
		return Card{}, ErrNoCardAvailable
	}
	if index == Last {
		index = len(pile) - 1
	}
	if index < 0 || index >= len(pile) {
		return Card{}, fmt.Errorf("%w: index %d of %d", ErrNoCardAvailable, index, len(pile))
	}
	card := pile[index]
	*from = append(pile[:index], pile[index+1:]...)
	return card, nil
}

// MoveCard transfers one card between piles. to is untouched when the take fails.
func MoveCard(from *[]Card, index int, to *[]Card) error {
	card, err := TakeCard(from, index)
	if err != nil {
		return err
	}
	*to = append(*to, card)
	return nil
}

// Penalty sums the penalty of a pile.
func Penalty(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += int(c.Penalty)
	}
	return total
}
