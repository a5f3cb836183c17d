// Package queue publishes match results to RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cowrow/cowrow/internal/game"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// MatchEndedQueue is the durable queue results are published to.
const MatchEndedQueue = "match.ended"

// MatchEndedEvent is the message body for a finished match.
type MatchEndedEvent struct {
	MatchID   string          `json:"match_id"`
	Rounds    int             `json:"rounds"`
	Loser     StandingEvent   `json:"loser"`
	Standings []StandingEvent `json:"standings"`
	EndedAt   string          `json:"ended_at"`
}

// StandingEvent is one seat's final score.
type StandingEvent struct {
	Seat  int    `json:"seat"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// NewMatchEndedEvent converts a result to its wire form.
func NewMatchEndedEvent(r game.Result, at time.Time) MatchEndedEvent {
	ev := MatchEndedEvent{
		MatchID: r.MatchID.String(),
		Rounds:  r.Rounds,
		Loser:   StandingEvent(r.Loser),
		EndedAt: at.UTC().Format(time.RFC3339),
	}
	for _, s := range r.Standings {
		ev.Standings = append(ev.Standings, StandingEvent(s))
	}
	return ev
}

// Publisher implements game.ResultPublisher. It dials once per message.
type Publisher struct {
	url string
	log *logrus.Entry
}

// NewPublisher publishes to the broker at url.
func NewPublisher(url string, log *logrus.Entry) *Publisher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Publisher{url: url, log: log.WithField("queue", MatchEndedQueue)}
}

// PublishResult implements game.ResultPublisher.
func (p *Publisher) PublishResult(ctx context.Context, result game.Result) error {
	body, err := json.Marshal(NewMatchEndedEvent(result, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(MatchEndedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq declare %s: %w", MatchEndedQueue, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", MatchEndedQueue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.log.WithField("match", result.MatchID).Debug("Published match result.")
	return nil
}
