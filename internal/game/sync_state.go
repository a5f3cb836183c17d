package game

import (
	"github.com/cowrow/cowrow/engine"
	"github.com/google/uuid"
)

// Phase is the coarse state of the match as seen by participants.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"  // no participant bound yet
	PhaseChoosing  Phase = "choosing" // seats are picking cards
	PhaseResolving Phase = "resolving"
	PhaseEnded     Phase = "ended"
)

// SeatSnapshot is the private state of the seat a view is built for.
type SeatSnapshot struct {
	Seat  int           `json:"seat"`
	Name  string        `json:"name"`
	Hand  []engine.Card `json:"hand"`
	Score int           `json:"score"`
}

// PlayerSnapshot is the public state of any seat.
type PlayerSnapshot struct {
	Seat     int    `json:"seat"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	HandSize int    `json:"handSize"`
	Bound    bool   `json:"bound"`
}

// SeatView is everything one participant may see. It shares no memory with
// live match state, so backends may keep or mutate it freely.
type SeatView struct {
	MatchID uuid.UUID        `json:"matchId"`
	Round   int              `json:"round"`
	Trick   int              `json:"trick"`
	Phase   Phase            `json:"phase"`
	Self    SeatSnapshot     `json:"self"`
	Rows    [][]engine.Card  `json:"rows"`
	Players []PlayerSnapshot `json:"players"`
}

// Clone returns a deep copy.
func (v SeatView) Clone() SeatView {
	out := v
	out.Self.Hand = append([]engine.Card(nil), v.Self.Hand...)
	out.Rows = make([][]engine.Card, len(v.Rows))
	for i, r := range v.Rows {
		out.Rows[i] = append([]engine.Card{}, r...)
	}
	out.Players = append([]PlayerSnapshot(nil), v.Players...)
	return out
}

// Standing is one line of the final table.
type Standing struct {
	Seat  int    `json:"seat"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Result summarises a finished match.
type Result struct {
	MatchID   uuid.UUID  `json:"matchId"`
	Rounds    int        `json:"rounds"`
	Loser     Standing   `json:"loser"`
	Standings []Standing `json:"standings"` // ascending score, lowest first
}

// snapshot builds the view for seat. Must run on the match goroutine.
func (m *Match) snapshot(seat int) SeatView {
	names := m.Table.Names()
	bound := m.Table.BoundSeats()

	s := m.seats[seat]
	v := SeatView{
		MatchID: m.ID,
		Round:   m.round,
		Trick:   m.trick,
		Phase:   m.phase,
		Self: SeatSnapshot{
			Seat:  seat,
			Name:  names[seat],
			Hand:  append([]engine.Card(nil), s.Hand...),
			Score: s.Score,
		},
		Rows:    make([][]engine.Card, engine.NumRows),
		Players: make([]PlayerSnapshot, len(m.seats)),
	}
	for i, r := range m.board {
		v.Rows[i] = append([]engine.Card{}, r...)
	}
	for i, p := range m.seats {
		v.Players[i] = PlayerSnapshot{
			Seat:     i,
			Name:     names[i],
			Score:    p.Score,
			HandSize: len(p.Hand),
			Bound:    bound[i],
		}
	}
	return v
}
