package game

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action types written to the match's action log.
const (
	ActionMatchStart = "match_start"
	ActionRoundStart = "round_start"
	ActionCardPlayed = "card_played"
	ActionCardPlaced = "card_placed"
	ActionRoundEnd   = "round_end"
	ActionMatchEnd   = "match_end"
	ActionPlayAgain  = "play_again"
)

// ActionRecord is one entry of the action log.
type ActionRecord struct {
	MatchID     uuid.UUID      `json:"matchId"`
	ActionIndex int            `json:"actionIndex"`
	Seat        int            `json:"seat"` // -1 for match-level actions
	ActionType  string         `json:"actionType"`
	Payload     map[string]any `json:"payload"`
	Timestamp   int64          `json:"timestamp"`
}

// Recorder persists action records, for example to a Redis list.
type Recorder interface {
	RecordAction(ctx context.Context, rec ActionRecord) error
}

// ResultPublisher announces finished matches to other services.
type ResultPublisher interface {
	PublishResult(ctx context.Context, result Result) error
}

const recordTimeout = 2 * time.Second

// logAction appends to the action log and ships the record asynchronously.
// Must run on the match goroutine.
func (m *Match) logAction(seat int, actionType string, payload map[string]any) {
	m.actionIndex++
	if payload == nil {
		payload = make(map[string]any)
	}
	rec := ActionRecord{
		MatchID:     m.ID,
		ActionIndex: m.actionIndex,
		Seat:        seat,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	log := m.log.WithField("action", actionType)
	log.WithField("seat", seat).WithField("payload", payload).Debug("Match action.")
	if m.recorder == nil {
		return
	}
	go func(rec ActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := m.recorder.RecordAction(ctx, rec); err != nil {
			log.WithError(err).WithField("actionIndex", rec.ActionIndex).Error("Failed to record match action.")
		}
	}(rec)
}
