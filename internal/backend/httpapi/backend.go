// Package httpapi serves participants over plain HTTP: they join, receive a
// bearer token, poll for prompts and post their answers.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/cowrow/cowrow/internal/auth"
	"github.com/cowrow/cowrow/internal/backend/mailbox"
	"github.com/cowrow/cowrow/internal/game"
	"github.com/cowrow/cowrow/internal/prompt"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const participantKey = "participant"

// Backend implements game.Backend for HTTP clients.
type Backend struct {
	issuer *auth.Issuer
	box    *mailbox.Mailbox
	log    *logrus.Entry

	mu       sync.Mutex
	listener game.Listener
	result   *game.Result
}

// New creates the backend. Register its routes with Register.
func New(issuer *auth.Issuer, log *logrus.Entry) *Backend {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Backend{
		issuer: issuer,
		box:    mailbox.New(nil),
		log:    log.WithField("backend", "http"),
	}
}

func (b *Backend) Name() string { return "http" }

func (b *Backend) Listen(l game.Listener) {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
}

func (b *Backend) RequestCardChoice(ctx context.Context, participantID string, view game.SeatView) (int, error) {
	r, err := b.box.Ask(ctx, participantID, prompt.KindCardChoice, view)
	return r.Index, err
}

func (b *Backend) RequestRowChoice(ctx context.Context, participantID string, view game.SeatView) (int, error) {
	r, err := b.box.Ask(ctx, participantID, prompt.KindRowChoice, view)
	return r.Index, err
}

func (b *Backend) RequestPlayAgain(ctx context.Context, participantID string) (bool, error) {
	view, _ := b.box.Latest(participantID)
	r, err := b.box.Ask(ctx, participantID, prompt.KindPlayAgain, view)
	return r.PlayAgain, err
}

func (b *Backend) SeatStateChanged(participantID string, view game.SeatView) {
	b.box.Store(participantID, view)
}

func (b *Backend) MatchEnded(_ context.Context, result game.Result) error {
	b.box.DropAll(prompt.ErrMatchEnded)
	b.mu.Lock()
	b.result = &result
	b.mu.Unlock()
	return nil
}

// Register mounts the API under /v1.
func (b *Backend) Register(e *echo.Echo) {
	g := e.Group("/v1")
	g.POST("/join", b.join)

	authed := g.Group("", b.requireToken)
	authed.POST("/change-name", b.changeName)
	authed.GET("/state", b.state)
	authed.GET("/prompt", b.pendingPrompts)
	authed.GET("/result", b.lastResult)
	authed.POST("/choose-card", b.chooseCard)
	authed.POST("/choose-row", b.chooseRow)
	authed.POST("/play-again", b.playAgain)
}

func (b *Backend) getListener() (game.Listener, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "no match running")
	}
	return b.listener, nil
}

func (b *Backend) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(h, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
		}
		pid, err := b.bearer(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		c.Set(participantKey, pid)
		return next(c)
	}
}

// bearer returns the participant named by the request's bearer token.
func (b *Backend) bearer(c echo.Context) (string, error) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(h, "Bearer ") {
		return "", auth.ErrInvalidToken
	}
	return b.issuer.Parse(strings.TrimPrefix(h, "Bearer "))
}

type joinRequest struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type joinResponse struct {
	PlayerID string        `json:"playerId"`
	Seat     int           `json:"seat"`
	Token    string        `json:"token"`
	State    game.SeatView `json:"state"`
}

func (b *Backend) join(c echo.Context) error {
	var req joinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	l, err := b.getListener()
	if err != nil {
		return err
	}
	pid := strings.TrimSpace(req.PlayerID)
	if pid == "" {
		pid = uuid.NewString()
	} else if _, err := l.SeatView(pid); err == nil {
		// A bound id can only be rejoined by its current holder.
		if owner, err := b.bearer(c); err != nil || owner != pid {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "playerId is in use"})
		}
	}
	seat, err := l.ParticipantJoined(b, pid, req.PlayerName)
	if err != nil {
		return joinError(c, err)
	}
	token, err := b.issuer.Issue(pid, seat)
	if err != nil {
		b.log.WithError(err).Error("Failed to issue token.")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue token"})
	}
	view, _ := l.SeatView(pid)
	return c.JSON(http.StatusOK, joinResponse{PlayerID: pid, Seat: seat, Token: token, State: view})
}

func joinError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, game.ErrInvalidName):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, game.ErrTableFull):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, game.ErrUnknownParticipant):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}
	return err
}

type changeNameRequest struct {
	PlayerName string `json:"playerName"`
}

func (b *Backend) changeName(c echo.Context) error {
	var req changeNameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	l, err := b.getListener()
	if err != nil {
		return err
	}
	if err := l.ParticipantRenamed(participant(c), req.PlayerName); err != nil {
		return joinError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (b *Backend) state(c echo.Context) error {
	l, err := b.getListener()
	if err != nil {
		return err
	}
	view, err := l.SeatView(participant(c))
	if err != nil {
		return joinError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

type promptResponse struct {
	Kinds []prompt.Kind  `json:"kinds"`
	State *game.SeatView `json:"state,omitempty"`
}

// pendingPrompts returns the open questions, 204 when there are none.
func (b *Backend) pendingPrompts(c echo.Context) error {
	pid := participant(c)
	kinds := b.box.Pending(pid)
	if len(kinds) == 0 {
		return c.NoContent(http.StatusNoContent)
	}
	res := promptResponse{Kinds: kinds}
	if v, ok := b.box.Question(pid, kinds[0]); ok {
		res.State = &v
	}
	return c.JSON(http.StatusOK, res)
}

func (b *Backend) lastResult(c echo.Context) error {
	b.mu.Lock()
	res := b.result
	b.mu.Unlock()
	if res == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, res)
}

type cardRequest struct {
	CardIndex *int `json:"cardIndex"`
}

type rowRequest struct {
	RowIndex *int `json:"rowIndex"`
}

type playAgainRequest struct {
	PlayAgain *bool `json:"playAgain"`
}

func (b *Backend) chooseCard(c echo.Context) error {
	var req cardRequest
	if err := c.Bind(&req); err != nil || req.CardIndex == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cardIndex is required"})
	}
	return b.answer(c, prompt.KindCardChoice, prompt.Reply{Index: *req.CardIndex})
}

func (b *Backend) chooseRow(c echo.Context) error {
	var req rowRequest
	if err := c.Bind(&req); err != nil || req.RowIndex == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rowIndex is required"})
	}
	return b.answer(c, prompt.KindRowChoice, prompt.Reply{Index: *req.RowIndex})
}

func (b *Backend) playAgain(c echo.Context) error {
	var req playAgainRequest
	if err := c.Bind(&req); err != nil || req.PlayAgain == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "playAgain is required"})
	}
	return b.answer(c, prompt.KindPlayAgain, prompt.Reply{PlayAgain: *req.PlayAgain})
}

func (b *Backend) answer(c echo.Context, kind prompt.Kind, reply prompt.Reply) error {
	if err := b.box.Answer(participant(c), kind, reply); err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	return c.NoContent(http.StatusAccepted)
}

func participant(c echo.Context) string {
	pid, _ := c.Get(participantKey).(string)
	return pid
}
