// Package socket serves participants over websockets. Every message is a
// JSON envelope {"type": ..., "payload": ...}.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/cowrow/cowrow/internal/backend/mailbox"
	"github.com/cowrow/cowrow/internal/game"
	"github.com/cowrow/cowrow/internal/prompt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Message types.
const (
	MsgJoin       = "join"
	MsgChangeName = "change-name"
	MsgChooseCard = "choose-card"
	MsgChooseRow  = "choose-row"
	MsgPlayAgain  = "play-again"

	MsgJoined     = "joined"
	MsgGameState  = "game-state"
	MsgMatchEnded = "match-ended"
	MsgError      = "error"
)

const (
	sendBuffer   = 64
	pingInterval = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// Message is the wire envelope.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type joinedPayload struct {
	PlayerID string `json:"playerId"`
	Seat     int    `json:"seat"`
}

type choicePayload struct {
	CardIndex *int  `json:"cardIndex,omitempty"`
	RowIndex  *int  `json:"rowIndex,omitempty"`
	PlayAgain *bool `json:"playAgain,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type client struct {
	participant string
	send        chan []byte
}

// Backend implements game.Backend over websocket connections.
type Backend struct {
	origins []string
	box     *mailbox.Mailbox
	log     *logrus.Entry

	mu       sync.Mutex
	listener game.Listener
	clients  map[string]*client // participant -> live connection
}

// New creates the backend. origins are passed to websocket.AcceptOptions.OriginPatterns.
func New(origins []string, log *logrus.Entry) *Backend {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	b := &Backend{
		origins: origins,
		log:     log.WithField("backend", "socket"),
		clients: make(map[string]*client),
	}
	b.box = mailbox.New(b.prompted)
	return b
}

func (b *Backend) Name() string { return "socket" }

func (b *Backend) Listen(l game.Listener) {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
}

func (b *Backend) RequestCardChoice(ctx context.Context, participantID string, view game.SeatView) (int, error) {
	r, err := b.ask(ctx, participantID, prompt.KindCardChoice, view)
	return r.Index, err
}

func (b *Backend) RequestRowChoice(ctx context.Context, participantID string, view game.SeatView) (int, error) {
	r, err := b.ask(ctx, participantID, prompt.KindRowChoice, view)
	return r.Index, err
}

func (b *Backend) RequestPlayAgain(ctx context.Context, participantID string) (bool, error) {
	view, _ := b.box.Latest(participantID)
	r, err := b.ask(ctx, participantID, prompt.KindPlayAgain, view)
	return r.PlayAgain, err
}

func (b *Backend) SeatStateChanged(participantID string, view game.SeatView) {
	b.box.Store(participantID, view)
	b.sendTo(participantID, MsgGameState, view)
}

func (b *Backend) MatchEnded(_ context.Context, result game.Result) error {
	b.box.DropAll(prompt.ErrMatchEnded)
	msg, err := encode(MsgMatchEnded, result)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.clients {
		trySend(c, msg)
	}
	return nil
}

func (b *Backend) ask(ctx context.Context, participantID string, kind prompt.Kind, view game.SeatView) (prompt.Reply, error) {
	return b.box.AskWhile(ctx, participantID, kind, view, func() bool { return b.connected(participantID) })
}

// prompted pushes "<kind>-prompted" with the view the question was asked with.
func (b *Backend) prompted(participantID string, kind prompt.Kind, view game.SeatView) {
	b.sendTo(participantID, string(kind)+"-prompted", view)
}

func (b *Backend) connected(participantID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.clients[participantID]
	return ok
}

func (b *Backend) sendTo(participantID, typ string, payload any) {
	msg, err := encode(typ, payload)
	if err != nil {
		b.log.WithError(err).WithField("type", typ).Error("Failed to encode message.")
		return
	}
	b.mu.Lock()
	c, ok := b.clients[participantID]
	b.mu.Unlock()
	if ok {
		trySend(c, msg)
	}
}

// trySend drops the message when the client's buffer is full.
func trySend(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

func encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: typ, Payload: raw})
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: b.origins})
	if err != nil {
		b.log.WithError(err).Warn("Websocket upgrade failed.")
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{send: make(chan []byte, sendBuffer)}
	go b.writeLoop(ctx, conn, c)

	err = b.readLoop(ctx, conn, c)
	if c.participant != "" {
		b.disconnect(c)
	}
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		b.log.WithField("participant", c.participant).Debug("Websocket closed.")
	} else {
		b.log.WithError(err).WithField("participant", c.participant).Info("Websocket closed.")
	}
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func (b *Backend) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func (b *Backend) readLoop(ctx context.Context, conn *websocket.Conn, c *client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			b.reply(c, MsgError, errorPayload{Message: "malformed message"})
			continue
		}
		if err := b.handle(c, msg); err != nil {
			b.reply(c, MsgError, errorPayload{Message: err.Error()})
		}
	}
}

func (b *Backend) handle(c *client, msg Message) error {
	if msg.Type == MsgJoin {
		return b.join(c, msg.Payload)
	}
	if c.participant == "" {
		return errors.New("join first")
	}
	var p choicePayload
	switch msg.Type {
	case MsgChangeName:
		var req joinPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return errors.New("malformed payload")
		}
		l, err := b.getListener()
		if err != nil {
			return err
		}
		return l.ParticipantRenamed(c.participant, req.PlayerName)
	case MsgChooseCard:
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.CardIndex == nil {
			return errors.New("cardIndex is required")
		}
		return b.box.Answer(c.participant, prompt.KindCardChoice, prompt.Reply{Index: *p.CardIndex})
	case MsgChooseRow:
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.RowIndex == nil {
			return errors.New("rowIndex is required")
		}
		return b.box.Answer(c.participant, prompt.KindRowChoice, prompt.Reply{Index: *p.RowIndex})
	case MsgPlayAgain:
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.PlayAgain == nil {
			return errors.New("playAgain is required")
		}
		return b.box.Answer(c.participant, prompt.KindPlayAgain, prompt.Reply{PlayAgain: *p.PlayAgain})
	}
	return fmt.Errorf("unknown message type %q", msg.Type)
}

func (b *Backend) join(c *client, payload json.RawMessage) error {
	var req joinPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return errors.New("malformed payload")
		}
	}
	l, err := b.getListener()
	if err != nil {
		return err
	}
	pid := strings.TrimSpace(req.PlayerID)
	if pid == "" {
		pid = c.participant
	}
	if pid == "" {
		pid = uuid.NewString()
	}
	if c.participant != "" && c.participant != pid {
		return errors.New("connection already joined as another participant")
	}

	// Register the connection before binding so prompts find it.
	b.mu.Lock()
	prev := b.clients[pid]
	b.clients[pid] = c
	b.mu.Unlock()

	seat, err := l.ParticipantJoined(b, pid, req.PlayerName)
	if err != nil {
		b.mu.Lock()
		if b.clients[pid] == c {
			if prev != nil {
				b.clients[pid] = prev
			} else {
				delete(b.clients, pid)
			}
		}
		b.mu.Unlock()
		return err
	}
	c.participant = pid
	b.reply(c, MsgJoined, joinedPayload{PlayerID: pid, Seat: seat})
	if view, err := l.SeatView(pid); err == nil {
		b.reply(c, MsgGameState, view)
	}
	// A reconnecting participant may still owe answers.
	for _, kind := range b.box.Pending(pid) {
		if view, ok := b.box.Question(pid, kind); ok {
			b.reply(c, string(kind)+"-prompted", view)
		}
	}
	return nil
}

// disconnect forgets the connection and fails its open questions.
func (b *Backend) disconnect(c *client) {
	b.mu.Lock()
	current := b.clients[c.participant] == c
	if current {
		delete(b.clients, c.participant)
	}
	b.mu.Unlock()
	if current {
		b.box.Drop(c.participant, prompt.ErrParticipantGone)
	}
}

func (b *Backend) reply(c *client, typ string, payload any) {
	msg, err := encode(typ, payload)
	if err != nil {
		return
	}
	trySend(c, msg)
}

func (b *Backend) getListener() (game.Listener, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil, errors.New("no match running")
	}
	return b.listener, nil
}
