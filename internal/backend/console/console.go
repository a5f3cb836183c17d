// Package console lets one participant play from a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cowrow/cowrow/engine"
	"github.com/cowrow/cowrow/internal/backend/mailbox"
	"github.com/cowrow/cowrow/internal/game"
	"github.com/cowrow/cowrow/internal/prompt"
	"github.com/sirupsen/logrus"
)

// Participant is the id the terminal player joins with.
const Participant = "cli"

// Backend reads answers from in and writes the table to out.
type Backend struct {
	in  io.Reader
	box *mailbox.Mailbox
	log *logrus.Entry

	outMu sync.Mutex
	out   io.Writer

	mu       sync.Mutex
	listener game.Listener
	ready    chan struct{}
}

// New creates a console backend.
func New(in io.Reader, out io.Writer, log *logrus.Entry) *Backend {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	b := &Backend{
		in:    in,
		out:   out,
		log:   log.WithField("backend", "console"),
		ready: make(chan struct{}),
	}
	b.box = mailbox.New(b.show)
	return b
}

func (b *Backend) Name() string { return "console" }

func (b *Backend) Listen(l game.Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		b.listener = l
		close(b.ready)
	}
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
	r, err := b.box.Ask(ctx, participantID, prompt.KindPlayAgain, game.SeatView{})
	return r.PlayAgain, err
}

func (b *Backend) SeatStateChanged(participantID string, view game.SeatView) {
	b.box.Store(participantID, view)
}

// MatchEnded cancels any question still on screen and prints the standings.
func (b *Backend) MatchEnded(_ context.Context, result game.Result) error {
	b.box.DropAll(prompt.ErrMatchEnded)
	b.printf("\nMatch over after %d round(s). %s reached %d points.\n", result.Rounds, result.Loser.Name, result.Loser.Score)
	for i, s := range result.Standings {
		b.printf("%d. %-16s %3d\n", i+1, s.Name, s.Score)
	}
	return nil
}

// Run asks for a name, joins, then feeds input lines to open questions
// until in is exhausted or ctx ends.
func (b *Backend) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(b.in)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-b.ready:
	case <-ctx.Done():
		return nil
	}

	if err := b.join(ctx, lines); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				b.log.Info("Console input closed.")
				b.box.Drop(Participant, prompt.ErrParticipantGone)
				return nil
			}
			b.answer(line)
		}
	}
}

func (b *Backend) join(ctx context.Context, lines <-chan string) error {
	b.mu.Lock()
	l := b.listener
	b.mu.Unlock()
	for {
		b.printf("Enter your name: ")
		var line string
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-lines:
			if !ok {
				return nil
			}
			line = s
		}
		name, err := game.ValidateName(line)
		if err != nil {
			b.printf("Name must be at least %d characters long.\n", game.MinNameLength)
			continue
		}
		seat, err := l.ParticipantJoined(b, Participant, name)
		if err != nil {
			return fmt.Errorf("console join: %w", err)
		}
		b.printf("Seated at %d as %s.\n", seat+1, name)
		return nil
	}
}

// answer parses line for the question currently open.
func (b *Backend) answer(line string) {
	kinds := b.box.Pending(Participant)
	if len(kinds) == 0 {
		b.printf("Nothing to answer right now.\n")
		return
	}
	kind := kinds[0]
	view, _ := b.box.Question(Participant, kind)

	var reply prompt.Reply
	switch kind {
	case prompt.KindCardChoice:
		order := handOrder(view.Self.Hand)
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(order) {
			b.printf("Pick a card between 1 and %d: ", len(order))
			return
		}
		reply.Index = order[n-1]
	case prompt.KindRowChoice:
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > engine.NumRows {
			b.printf("Pick a row between 1 and %d: ", engine.NumRows)
			return
		}
		reply.Index = n - 1
	case prompt.KindPlayAgain:
		switch strings.ToLower(line) {
		case "y", "yes":
			reply.PlayAgain = true
		case "n", "no":
		default:
			b.printf("Answer y or n: ")
			return
		}
	}
	if err := b.box.Answer(Participant, kind, reply); err != nil {
		b.printf("Too late, that question was withdrawn.\n")
	}
}

// show renders a new question.
func (b *Backend) show(_ string, kind prompt.Kind, view game.SeatView) {
	switch kind {
	case prompt.KindCardChoice:
		b.printf("\n%s", renderBoard(view))
		b.printf("%s, your hand:\n", view.Self.Name)
		for i, idx := range handOrder(view.Self.Hand) {
			c := view.Self.Hand[idx]
			b.printf("  %2d) card %3d  penalty %d\n", i+1, c.Rank, c.Penalty)
		}
		b.printf("Choose a card: ")
	case prompt.KindRowChoice:
		b.printf("\n%s", renderBoard(view))
		b.printf("%s, your card fits no row. Choose a row to take (1-%d): ", view.Self.Name, engine.NumRows)
	case prompt.KindPlayAgain:
		b.printf("Play again? (y/n): ")
	}
}

func (b *Backend) printf(format string, args ...any) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	fmt.Fprintf(b.out, format, args...)
}

// handOrder returns hand indexes sorted by card rank.
func handOrder(hand []engine.Card) []int {
	order := make([]int, len(hand))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return hand[order[i]].Rank < hand[order[j]].Rank })
	return order
}

func renderBoard(view game.SeatView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Round %d, trick %d\n", view.Round, view.Trick)
	for i, r := range view.Rows {
		ranks := make([]string, len(r))
		for j, c := range r {
			ranks[j] = strconv.Itoa(int(c.Rank))
		}
		fmt.Fprintf(&sb, "  Row %d: %-20s %2d penalty\n", i+1, strings.Join(ranks, " "), engine.Penalty(r))
	}
	for _, p := range view.Players {
		fmt.Fprintf(&sb, "  %-16s %3d\n", p.Name, p.Score)
	}
	return sb.String()
}
