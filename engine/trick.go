package engine

import (
	"fmt"
	"sort"
)

// Play is one seat's chosen card for a trick.
type Play struct {
	Seat int
	Card Card
}

// SortPlays orders plays by ascending rank. Ranks are unique so the order is total.
func SortPlays(plays []Play) {
	sort.Slice(plays, func(i, j int) bool { return plays[i].Card.Rank < plays[j].Card.Rank })
}

// PlacementKind says how a card reached its row.
type PlacementKind uint8

const (
	// PlacedAppend means the card joined its target row.
	PlacedAppend PlacementKind = iota
	// PlacedFullRow means the target row held MaxRowLen cards and was claimed first.
	PlacedFullRow
	// PlacedLowCard means no row qualified; the seat picked a row and claimed it.
	PlacedLowCard
)

func (k PlacementKind) String() string {
	switch k {
	case PlacedAppend:
		return "append"
	case PlacedFullRow:
		return "full_row"
	case PlacedLowCard:
		return "low_card"
	}
	return "unknown"
}

// Placement describes the outcome of resolving one play.
type Placement struct {
	Seat    int           `json:"seat"`
	Card    Card          `json:"card"`
	Row     int           `json:"row"`
	Kind    PlacementKind `json:"kind"`
	Penalty int           `json:"penalty"` // collected by Seat, 0 for PlacedAppend
}

// Resolve places one play on the board, claiming a row first when required.
// pickRow is only called when no row qualifies; it must return a row in [0, NumRows).
func (b *Board) Resolve(p Play, seat *Seat, pickRow func() int) (Placement, error) {
	out := Placement{Seat: p.Seat, Card: p.Card}
	row, ok := b.TargetRow(p.Card.Rank)
	switch {
	case !ok:
		row = pickRow()
		if row < 0 || row >= NumRows {
			return out, fmt.Errorf("%w: row %d", ErrInvalidChoice, row)
		}
		out.Kind = PlacedLowCard
		out.Penalty = b.Claim(row, seat)
	case b.Full(row):
		out.Kind = PlacedFullRow
		out.Penalty = b.Claim(row, seat)
	default:
		out.Kind = PlacedAppend
	}
	b.Place(row, p.Card)
	out.Row = row
	return out, nil
}
