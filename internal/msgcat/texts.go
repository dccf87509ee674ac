package msgcat

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-arena-client/internal/game"
	"github.com/park285/cheese-arena-client/internal/session"
)

// Countdown renders the pregame overlay: the remaining count, then "Go!".
func (c *Catalog) Countdown(n int) string {
	if n > 0 {
		return c.MustRender("countdown.tick", map[string]any{"N": n})
	}
	return c.MustRender("countdown.go", nil)
}

// GameOver renders the headline for a finished game.
func (c *Catalog) GameOver(r *game.Result) string {
	if r == nil {
		return c.MustRender("game.over.fallback", nil)
	}
	switch r.Reason {
	case "checkmate":
		return c.MustRender("game.over.checkmate", map[string]any{"Winner": capitalize(string(r.Winner))})
	case "abort":
		return c.MustRender("game.over.abort", nil)
	case "":
		return c.MustRender("game.over.fallback", nil)
	default:
		return c.MustRender("game.over.other", map[string]any{"Reason": r.Reason})
	}
}

// Result renders the score line, or "" when the server sent none.
func (c *Catalog) Result(r *game.Result) string {
	if r == nil || r.Result == "" {
		return ""
	}
	return c.MustRender("game.result", map[string]any{"Result": r.Result})
}

func (c *Catalog) Connection(st session.State) string {
	return c.MustRender("connection."+string(st), nil)
}

func (c *Catalog) ServerError(msg string) string {
	return c.MustRender("error.server", map[string]any{"Message": msg})
}

// FormatClock renders remaining milliseconds as MM:SS, flooring at zero.
func FormatClock(ms int64) string {
	total := ms / 1000
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
