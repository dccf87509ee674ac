package game

import (
	"context"
	"errors"

	"github.com/park285/cheese-arena-client/pkg/protocol"
)

// Phase is the lifecycle of one match.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePregame Phase = "pregame"
	PhasePlaying Phase = "playing"
	PhaseOver    Phase = "over"
)

var (
	ErrNoActiveGame = errors.New("no active game")
	ErrGameOver     = errors.New("game is over")
	ErrGameActive   = errors.New("game already in progress")
)

// Rules is the external move validator. Move returns an error for illegal moves
// and must leave the position untouched in that case.
type Rules interface {
	Load(state string) error
	CurrentState() string
	Turn() protocol.Side
	// Ply orders positions within a game; a later position has a larger value.
	Ply() int
	Move(from, to, promotion string) error
}

// Sender forwards outbound commands through the authenticated session.
type Sender interface {
	Send(ctx context.Context, cmd protocol.ClientCommand) error
}

// Timers is driven by the machine on phase changes. Implementations must make
// ticks from a stopped timer no-ops.
type Timers interface {
	StartCountdown()
	StartClock()
	ScheduleExit(gameID int64)
	Stop()
}

// Clocks holds remaining milliseconds per side.
type Clocks struct {
	White int64
	Black int64
}

func (c Clocks) For(side protocol.Side) int64 {
	if side == protocol.Black {
		return c.Black
	}
	return c.White
}

// Result is the terminal descriptor, set once per match.
type Result struct {
	Reason string
	Winner protocol.Winner
	Result string
}

// State is an immutable view of the current match.
type State struct {
	Phase       Phase
	GameID      int64
	PlayerColor protocol.Side
	BoardState  string
	Clocks      Clocks
	TurnToMove  protocol.Side
	PlyCount    int
	Countdown   int
	Pending     bool
	LastMove    *protocol.MoveRef
	Result      *Result
}
