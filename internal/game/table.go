package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// MinNameLength is the shortest display name a participant may choose.
const MinNameLength = 3

var (
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrTableFull          = errors.New("no free seat")
	ErrInvalidName        = fmt.Errorf("name must be at least %d characters", MinNameLength)
)

type binding struct {
	participant string
	backend     Backend
}

// Table tracks who controls each seat. It is shared between the match
// goroutine and backend goroutines and guards everything with one mutex.
// Engine state (hands, scores, rows) never lives here.
type Table struct {
	mu       sync.Mutex
	names    []string
	bindings []binding
	lastSeat map[string]int // participant -> seat held most recently
	views    []SeatView     // latest snapshot per seat
	joined   chan struct{}  // signalled on every successful join
	log      *logrus.Entry
}

// NewTable creates a table with default names "Player 1".."Player n".
func NewTable(seats int, log *logrus.Entry) *Table {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	t := &Table{
		names:    make([]string, seats),
		bindings: make([]binding, seats),
		lastSeat: make(map[string]int),
		views:    make([]SeatView, seats),
		joined:   make(chan struct{}, 1),
		log:      log,
	}
	for i := range t.names {
		t.names[i] = fmt.Sprintf("Player %d", i+1)
	}
	return t
}

// ValidateName trims name and checks its length.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < MinNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// ParticipantJoined implements Listener.
//
// A participant already bound keeps its seat (the backend is replaced). A
// participant that held a seat before gets it back if that seat is free.
// Otherwise the lowest free seat is used.
func (t *Table) ParticipantJoined(b Backend, participantID, name string) (int, error) {
	if participantID == "" {
		return -1, fmt.Errorf("%w: empty id", ErrUnknownParticipant)
	}
	if name != "" {
		var err error
		if name, err = ValidateName(name); err != nil {
			return -1, err
		}
	}

	t.mu.Lock()
	seat, rejoin := t.seatLocked(participantID)
	if !rejoin {
		if last, ok := t.lastSeat[participantID]; ok && t.bindings[last].participant == "" {
			seat = last
		} else {
			seat = t.freeSeatLocked()
		}
	}
	if seat < 0 {
		t.mu.Unlock()
		return -1, ErrTableFull
	}
	t.bindings[seat] = binding{participant: participantID, backend: b}
	t.lastSeat[participantID] = seat
	if name != "" {
		t.names[seat] = name
	}
	name = t.names[seat]
	t.mu.Unlock()

	select {
	case t.joined <- struct{}{}:
	default:
	}
	t.log.WithFields(logrus.Fields{
		"seat":        seat,
		"participant": participantID,
		"name":        name,
		"backend":     b.Name(),
		"rejoin":      rejoin,
	}).Info("Participant joined.")
	return seat, nil
}

// ParticipantRenamed implements Listener.
func (t *Table) ParticipantRenamed(participantID, name string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}
	t.mu.Lock()
	seat, ok := t.seatLocked(participantID)
	if ok {
		t.names[seat] = name
	}
	t.mu.Unlock()
	if !ok {
		return ErrUnknownParticipant
	}
	t.log.WithFields(logrus.Fields{"seat": seat, "participant": participantID, "name": name}).Info("Participant renamed.")
	return nil
}

// SeatView implements Listener. The returned view carries the current name
// even if the last snapshot predates a rename.
func (t *Table) SeatView(participantID string) (SeatView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	seat, ok := t.seatLocked(participantID)
	if !ok {
		return SeatView{}, ErrUnknownParticipant
	}
	v := t.views[seat].Clone()
	v.Self.Seat = seat
	v.Self.Name = t.names[seat]
	return v, nil
}

// Binding returns the participant and backend controlling seat.
func (t *Table) Binding(seat int) (participantID string, b Backend, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bd := t.bindings[seat]
	return bd.participant, bd.backend, bd.participant != ""
}

// Unbind releases seat if participantID still controls it. The seat's
// engine state is untouched and it plays automatically from now on.
func (t *Table) Unbind(seat int, participantID string) bool {
	t.mu.Lock()
	if t.bindings[seat].participant != participantID || participantID == "" {
		t.mu.Unlock()
		return false
	}
	t.bindings[seat] = binding{}
	t.mu.Unlock()
	t.log.WithFields(logrus.Fields{"seat": seat, "participant": participantID}).Info("Participant unbound, seat is on autoplay.")
	return true
}

// SeatOf returns the seat participantID is bound to.
func (t *Table) SeatOf(participantID string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seatLocked(participantID)
}

// AnyBound reports whether at least one seat is controlled by a participant.
func (t *Table) AnyBound() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range t.bindings {
		if b.participant != "" {
			return true
		}
	}
	return false
}

// BoundSeats reports for every seat whether it is bound.
func (t *Table) BoundSeats() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]bool, len(t.bindings))
	for i, b := range t.bindings {
		out[i] = b.participant != ""
	}
	return out
}

// Names returns a copy of the seat names.
func (t *Table) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.names...)
}

// Joined is signalled after a successful join. It is edge-triggered and
// coalescing; callers must re-check AnyBound.
func (t *Table) Joined() <-chan struct{} { return t.joined }

func (t *Table) storeView(seat int, v SeatView) {
	t.mu.Lock()
	t.views[seat] = v
	t.mu.Unlock()
}

func (t *Table) seatLocked(participantID string) (int, bool) {
	if participantID == "" {
		return -1, false
	}
	for i, b := range t.bindings {
		if b.participant == participantID {
			return i, true
		}
	}
	return -1, false
}

func (t *Table) freeSeatLocked() int {
	for i, b := range t.bindings {
		if b.participant == "" {
			return i
		}
	}
	return -1
}
