package game

import "context"

// Backend is a transport serving human participants: a console, the HTTP join
// service, or the websocket service. The match talks to participants only
// through this interface.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Listen hands the backend the listener it reports joins and renames to.
	// It is called once, before the match loop starts.
	Listen(l Listener)

	// RequestCardChoice asks for an index into the participant's current hand.
	RequestCardChoice(ctx context.Context, participantID string, view SeatView) (int, error)
	// RequestRowChoice asks which row (0..3) the participant takes.
	RequestRowChoice(ctx context.Context, participantID string, view SeatView) (int, error)
	// RequestPlayAgain asks whether the participant joins the next match.
	RequestPlayAgain(ctx context.Context, participantID string) (bool, error)

	// SeatStateChanged pushes a fresh snapshot for display. It must not block.
	SeatStateChanged(participantID string, view SeatView)
	// MatchEnded lets the backend drop outstanding prompts and show the result.
	MatchEnded(ctx context.Context, result Result) error
}

// Listener is the core's side of the backend contract.
type Listener interface {
	// ParticipantJoined binds the participant to a seat and returns its index.
	// Joining again with the same id reattaches to the same seat; an empty
	// name keeps the current one.
	ParticipantJoined(b Backend, participantID, name string) (int, error)
	// ParticipantRenamed changes the display name of a bound participant.
	ParticipantRenamed(participantID, name string) error
	// SeatView returns the latest snapshot published for the participant's seat.
	SeatView(participantID string) (SeatView, error)
}
