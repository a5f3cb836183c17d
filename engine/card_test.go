package engine

import (
	"bytes"
	"errors"
	"testing"
)

// TestNewDeck verifies ranks 1..N are unique and carry the fixed penalty.
func TestNewDeck(t *testing.T) {
	r := DefaultRules()
	deck := NewDeck(r)
	if len(deck) != r.CardCount {
		t.Fatalf("len(deck) = %d, want %d", len(deck), r.CardCount)
	}
	seen := make(map[uint8]bool)
	for i, c := range deck {
		if int(c.Rank) != i+1 {
			t.Errorf("deck[%d].Rank = %d, want %d", i, c.Rank, i+1)
		}
		if int(c.Penalty) != r.CardPenalty {
			t.Errorf("deck[%d].Penalty = %d, want %d", i, c.Penalty, r.CardPenalty)
		}
		if seen[c.Rank] {
			t.Errorf("duplicate rank %d", c.Rank)
		}
		seen[c.Rank] = true
	}
}

// TestShuffleKeepsCards verifies a shuffle is a permutation.
func TestShuffleKeepsCards(t *testing.T) {
	deck := NewDeck(DefaultRules())
	if err := Shuffle(deck); err != nil {
		t.Fatalf("Shuffle: %v", err)
	}
	seen := make(map[uint8]bool)
	for _, c := range deck {
		seen[c.Rank] = true
	}
	if len(seen) != len(deck) {
		t.Errorf("got %d unique ranks after shuffle, want %d", len(seen), len(deck))
	}
}

// TestShuffleUniform runs a chi-square test over every permutation of a 4-card deck.
func TestShuffleUniform(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}
	const (
		trials = 24000
		perms  = 24 // 4!
		// chi-square critical value for 23 degrees of freedom, p < 0.0001.
		critical = 60.0
	)
	r := Rules{CardCount: 4, CardPenalty: 3}
	counts := make(map[[4]uint8]int)
	for i := 0; i < trials; i++ {
		deck := NewDeck(r)
		if err := Shuffle(deck); err != nil {
			t.Fatalf("Shuffle: %v", err)
		}
		counts[[4]uint8{deck[0].Rank, deck[1].Rank, deck[2].Rank, deck[3].Rank}]++
	}
	if len(counts) != perms {
		t.Fatalf("saw %d distinct permutations, want %d", len(counts), perms)
	}
	expected := float64(trials) / perms
	chi := 0.0
	for _, n := range counts {
		d := float64(n) - expected
		chi += d * d / expected
	}
	if chi > critical {
		t.Errorf("chi-square = %.2f exceeds %.2f; shuffle looks biased: %v", chi, critical, counts)
	}
}

// TestShuffleWithShortSource verifies a failing randomness source is reported.
func TestShuffleWithShortSource(t *testing.T) {
	deck := NewDeck(DefaultRules())
	if err := ShuffleWith(bytes.NewReader(nil), deck); err == nil {
		t.Fatal("expected error from empty randomness source")
	}
}

// TestTakeCardLast verifies the default take removes the final card.
func TestTakeCardLast(t *testing.T) {
	pile := []Card{{Rank: 1}, {Rank: 2}, {Rank: 3}}
	c, err := TakeCard(&pile, Last)
	if err != nil {
		t.Fatalf("TakeCard: %v", err)
	}
	if c.Rank != 3 || len(pile) != 2 {
		t.Errorf("took %v leaving %v, want rank 3 leaving two cards", c, pile)
	}
}

// TestTakeCardIndexKeepsOrder verifies removal by index preserves the remaining order.
func TestTakeCardIndexKeepsOrder(t *testing.T) {
	pile := []Card{{Rank: 1}, {Rank: 2}, {Rank: 3}, {Rank: 4}}
	c, err := TakeCard(&pile, 1)
	if err != nil {
		t.Fatalf("TakeCard: %v", err)
	}
	if c.Rank != 2 {
		t.Errorf("took rank %d, want 2", c.Rank)
	}
	want := []uint8{1, 3, 4}
	for i, r := range want {
		if pile[i].Rank != r {
			t.Errorf("pile[%d] = %d, want %d", i, pile[i].Rank, r)
		}
	}
}

// TestTakeCardEmpty verifies ErrNoCardAvailable on empty piles and bad indexes.
func TestTakeCardEmpty(t *testing.T) {
	var empty []Card
	if _, err := TakeCard(&empty, Last); !errors.Is(err, ErrNoCardAvailable) {
		t.Errorf("empty pile: err = %v, want ErrNoCardAvailable", err)
	}
	pile := []Card{{Rank: 1}}
	if _, err := TakeCard(&pile, 5); !errors.Is(err, ErrNoCardAvailable) {
		t.Errorf("bad index: err = %v, want ErrNoCardAvailable", err)
	}
	if len(pile) != 1 {
		t.Errorf("failed take changed pile: %v", pile)
	}
}

// TestMoveCard verifies a transfer neither duplicates nor loses a card.
func TestMoveCard(t *testing.T) {
	from := []Card{{Rank: 7}, {Rank: 9}}
	var to []Card
	if err := MoveCard(&from, 0, &to); err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	if len(from) != 1 || len(to) != 1 || to[0].Rank != 7 {
		t.Errorf("from=%v to=%v", from, to)
	}
	var empty []Card
	if err := MoveCard(&empty, Last, &to); !errors.Is(err, ErrNoCardAvailable) {
		t.Errorf("err = %v, want ErrNoCardAvailable", err)
	}
	if len(to) != 1 {
		t.Errorf("failed move appended to destination: %v", to)
	}
}
