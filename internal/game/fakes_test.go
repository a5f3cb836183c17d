package game

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/cowrow/cowrow/engine"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers prompts with configurable functions and records pushes.
type fakeBackend struct {
	mu       sync.Mutex
	listener Listener

	card  func(ctx context.Context, participant string, view SeatView) (int, error)
	row   func(ctx context.Context, participant string, view SeatView) (int, error)
	again func(ctx context.Context, participant string) (bool, error)

	states   map[string][]SeatView
	ended    []Result
	rowAsked int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{states: make(map[string][]SeatView)}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Listen(l Listener) {
	f.mu.Lock()
	f.listener = l
	f.mu.Unlock()
}

func (f *fakeBackend) RequestCardChoice(ctx context.Context, participant string, view SeatView) (int, error) {
	if f.card == nil {
		return 0, nil
	}
	return f.card(ctx, participant, view)
}

func (f *fakeBackend) RequestRowChoice(ctx context.Context, participant string, view SeatView) (int, error) {
	f.mu.Lock()
	f.rowAsked++
	f.mu.Unlock()
	if f.row == nil {
		return 0, nil
	}
	return f.row(ctx, participant, view)
}

func (f *fakeBackend) RequestPlayAgain(ctx context.Context, participant string) (bool, error) {
	if f.again == nil {
		return false, nil
	}
	return f.again(ctx, participant)
}

func (f *fakeBackend) SeatStateChanged(participant string, view SeatView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[participant] = append(f.states[participant], view)
}

func (f *fakeBackend) MatchEnded(_ context.Context, result Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, result)
	return nil
}

func (f *fakeBackend) join(t *testing.T, participant, name string) int {
	t.Helper()
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	seat, err := l.ParticipantJoined(f, participant, name)
	require.NoError(t, err)
	return seat
}

func (f *fakeBackend) endedResults() []Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Result(nil), f.ended...)
}

func (f *fakeBackend) statesFor(participant string) []SeatView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SeatView(nil), f.states[participant]...)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// newTestMatch builds a match with quiet logging and the given backends.
func newTestMatch(t *testing.T, opts Options, backends ...Backend) *Match {
	t.Helper()
	if opts.Rules == (engine.Rules{}) {
		opts.Rules = engine.DefaultRules()
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	opts.Backends = backends
	m, err := NewMatch(opts)
	require.NoError(t, err)
	return m
}

func cards(ranks ...uint8) []engine.Card {
	out := make([]engine.Card, len(ranks))
	for i, r := range ranks {
		out[i] = engine.Card{Rank: r, Penalty: 3}
	}
	return out
}

func row(ranks ...uint8) engine.Row { return engine.Row(cards(ranks...)) }
