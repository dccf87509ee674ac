package terminal

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-arena-client/internal/arena"
	"github.com/park285/cheese-arena-client/internal/game"
	"github.com/park285/cheese-arena-client/internal/msgcat"
	"github.com/park285/cheese-arena-client/internal/rules"
	"github.com/park285/cheese-arena-client/pkg/protocol"
)

type palette struct {
	reset, red, green, yellow, blue, cyan string
}

func newPalette(color bool) palette {
	if !color {
		return palette{}
	}
	return palette{
		reset:  "\033[0m",
		red:    "\033[31m",
		green:  "\033[32m",
		yellow: "\033[33m",
		blue:   "\033[34m",
		cyan:   "\033[36m",
	}
}

// Status renders the full snapshot.
func (r *Registry) Status(s arena.Snapshot) string {
	t := r.deps.Texts
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", t.Connection(s.Connection))
	if s.Searching {
		fmt.Fprintf(&b, "%s\n", t.MustRender("lobby.searching", nil))
	}
	g := s.Game
	switch g.Phase {
	case game.PhaseIdle:
		if s.Authenticated && !s.Searching {
			fmt.Fprintf(&b, "%s\n", t.MustRender("lobby.idle", nil))
		}
	case game.PhasePregame:
		fmt.Fprintf(&b, "Game #%d, you play %s. %s\n", g.GameID, g.PlayerColor, t.Countdown(g.Countdown))
	default:
		fmt.Fprintf(&b, "Game #%d, you play %s, ply %d\n", g.GameID, g.PlayerColor, g.PlyCount)
		fmt.Fprintf(&b, "%s\n", r.clocks(g))
		if g.Phase == game.PhaseOver {
			fmt.Fprintf(&b, "%s\n", r.result(g.Result, t))
		} else {
			fmt.Fprintf(&b, "%s\n", r.turn(g, t))
		}
	}
	if s.LastError != "" {
		fmt.Fprintf(&b, "%s%s%s\n", r.pal.red, t.ServerError(s.LastError), r.pal.reset)
	}
	return b.String()
}

func (r *Registry) clocks(g game.State) string {
	white := "White " + msgcat.FormatClock(g.Clocks.White)
	black := "Black " + msgcat.FormatClock(g.Clocks.Black)
	if g.Phase == game.PhasePlaying {
		if g.TurnToMove == protocol.White {
			white = r.pal.blue + white + r.pal.reset
		} else {
			black = r.pal.red + black + r.pal.reset
		}
	}
	return white + " | " + black
}

func (r *Registry) turn(g game.State, t *msgcat.Catalog) string {
	if g.Pending {
		return t.MustRender("game.pending", nil)
	}
	if g.TurnToMove == g.PlayerColor {
		return t.MustRender("game.turn.mine", nil)
	}
	return t.MustRender("game.turn.theirs", nil)
}

func (r *Registry) result(res *game.Result, t *msgcat.Catalog) string {
	out := r.pal.yellow + t.GameOver(res) + r.pal.reset
	if line := t.Result(res); line != "" {
		out += "\n" + line
	}
	return out
}

// board draws the position with the chess engine's text diagram.
func (r *Registry) board(g game.State) string {
	e := rules.New()
	if err := e.Load(g.BoardState); err != nil {
		return fmt.Sprintf("(unreadable position: %s)\n", g.BoardState)
	}
	var b strings.Builder
	b.WriteString(e.Draw())
	if g.LastMove != nil {
		fmt.Fprintf(&b, "Last move: %s\n", g.LastMove)
	}
	return b.String()
}

// Watch prints what changed between consecutive snapshots until snaps closes.
func (r *Registry) Watch(snaps <-chan arena.Snapshot) {
	prev, ok := <-snaps
	if !ok {
		return
	}
	for s := range snaps {
		if out := r.changes(prev, s); out != "" {
			r.printf("%s", out)
		}
		prev = s
	}
}

func (r *Registry) changes(prev, s arena.Snapshot) string {
	t := r.deps.Texts
	var b strings.Builder
	if s.Connection != prev.Connection {
		fmt.Fprintf(&b, "%s\n", t.Connection(s.Connection))
	}
	if s.LastError != "" && s.LastError != prev.LastError {
		fmt.Fprintf(&b, "%s%s%s\n", r.pal.red, t.ServerError(s.LastError), r.pal.reset)
	}

	g, pg := s.Game, prev.Game
	if g.Phase == game.PhaseIdle {
		return b.String()
	}
	fresh := g.GameID != pg.GameID || pg.Phase == game.PhaseIdle || (pg.Phase == game.PhaseOver && g.Phase != game.PhaseOver)
	if fresh {
		fmt.Fprintf(&b, "%sGame #%d started, you play %s%s\n", r.pal.green, g.GameID, g.PlayerColor, r.pal.reset)
	}
	switch g.Phase {
	case game.PhasePregame:
		if fresh || g.Countdown != pg.Countdown {
			fmt.Fprintf(&b, "%s\n", t.Countdown(g.Countdown))
		}
	case game.PhasePlaying:
		switch {
		case pg.Phase == game.PhasePregame:
			fmt.Fprintf(&b, "%s\n%s%s\n", t.Countdown(0), r.board(g), r.turn(g, t))
		case g.PlyCount != pg.PlyCount:
			fmt.Fprintf(&b, "%s%s\n", r.board(g), r.turn(g, t))
		case pg.Pending && !g.Pending:
			fmt.Fprintf(&b, "%sMove rolled back%s\n%s", r.pal.red, r.pal.reset, r.board(g))
		}
	case game.PhaseOver:
		if pg.Phase != game.PhaseOver || fresh {
			fmt.Fprintf(&b, "%s\n", r.result(g.Result, t))
		}
	}
	return b.String()
}
