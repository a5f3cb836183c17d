package engine

import "fmt"

// Row is one penalty row. Its active card is the last one.
type Row []Card

// Board holds the four rows. Row geometry is fixed: rows are never reordered.
type Board [NumRows]Row

// NewBoard draws one card from the end of deck into each row, row 0 first.
func NewBoard(deck *[]Card) (Board, error) {
	var b Board
	for i := range b {
		row := make([]Card, 0, MaxRowLen)
		if err := MoveCard(deck, Last, &row); err != nil {
			return Board{}, fmt.Errorf("init row %d: %w", i, err)
		}
		b[i] = row
	}
	return b, nil
}

// Active returns the active card of a row and whether the row has one.
func (b *Board) Active(row int) (Card, bool) {
	r := b[row]
	if len(r) == 0 {
		return Card{}, false
	}
	return r[len(r)-1], true
}

// ActiveCards returns the active card of every row. Empty rows report the zero Card.
func (b *Board) ActiveCards() [NumRows]Card {
	var out [NumRows]Card
	for i := range b {
		out[i], _ = b.Active(i)
	}
	return out
}

// TargetRow finds the row whose active rank is the largest one still <= rank.
// ok is false when every active rank exceeds rank; the player must then pick a row.
func (b *Board) TargetRow(rank uint8) (row int, ok bool) {
	row = -1
	var best uint8
	for i := range b {
		c, has := b.Active(i)
		if !has || c.Rank > rank {
			continue
		}
		if row == -1 || c.Rank > best {
			row, best = i, c.Rank
		}
	}
	return row, row != -1
}

// Full reports whether a row has reached MaxRowLen and must be claimed before placing.
func (b *Board) Full(row int) bool {
	return len(b[row]) >= MaxRowLen
}

// Claim adds the row's penalty to the seat's score and empties the row.
// The row's cards are discarded. It returns the penalty collected.
func (b *Board) Claim(row int, seat *Seat) int {
	penalty := Penalty(b[row])
	seat.Score += penalty
	b[row] = make(Row, 0, MaxRowLen)
	return penalty
}

// Place appends a card to a row.
func (b *Board) Place(row int, c Card) {
	b[row] = append(b[row], c)
}

// CardCount returns the number of cards across all rows.
func (b *Board) CardCount() int {
	n := 0
	for _, r := range b {
		n += len(r)
	}
	return n
}

// Clone returns a deep copy that shares no backing arrays with b.
func (b *Board) Clone() Board {
	var out Board
	for i, r := range b {
		out[i] = append(make(Row, 0, len(r)), r...)
	}
	return out
}
