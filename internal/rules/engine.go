package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-arena-client/pkg/protocol"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// DefaultPromotion is applied whenever a move needs a promotion piece.
const DefaultPromotion = "q"

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrIllegalMove     = errors.New("illegal move")
)

// Engine validates moves against a single position. It is not safe for concurrent use.
type Engine struct {
	game *nchess.Game
}

func New() *Engine {
	return &Engine{game: nchess.NewGame()}
}

// Load replaces the position. On failure the previous position is kept.
func (e *Engine) Load(fen string) error {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		fen = StartFEN
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	e.game = nchess.NewGame(opt)
	return nil
}

// CurrentState returns the position as FEN.
func (e *Engine) CurrentState() string {
	return e.game.FEN()
}

// Turn reports the side to move.
func (e *Engine) Turn() protocol.Side {
	if e.game.Position().Turn() == nchess.Black {
		return protocol.Black
	}
	return protocol.White
}

// Ply counts the half-moves before the current position, derived from the
// FEN fullmove number and the side to move.
func (e *Engine) Ply() int {
	fields := strings.Fields(e.game.FEN())
	full := 1
	if len(fields) >= 6 {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			full = n
		}
	}
	ply := (full - 1) * 2
	if e.Turn() == protocol.Black {
		ply++
	}
	return ply
}

// Move applies from→to. A promotion piece is only used when the plain move is
// not legal; an empty promotion falls back to DefaultPromotion.
func (e *Engine) Move(from, to, promotion string) error {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if len(from) != 2 || len(to) != 2 {
		return fmt.Errorf("%w: %s%s", ErrIllegalMove, from, to)
	}
	if e.game.Outcome() != nchess.NoOutcome {
		return fmt.Errorf("%w: game already decided", ErrIllegalMove)
	}
	uci := from + to
	if err := e.game.PushNotationMove(uci, nchess.UCINotation{}, nil); err == nil {
		return nil
	}
	promotion = strings.ToLower(strings.TrimSpace(promotion))
	if promotion == "" {
		promotion = DefaultPromotion
	}
	if err := e.game.PushNotationMove(uci+promotion, nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	return nil
}

// Draw returns a text diagram of the current board.
func (e *Engine) Draw() string {
	return e.game.Position().Board().Draw()
}
