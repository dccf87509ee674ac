package terminal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/cheese-arena-client/internal/game"
	"github.com/park285/cheese-arena-client/internal/tokenstore"
	"github.com/park285/cheese-arena-client/pkg/protocol"
)

func (r *Registry) registerAuthCommands() {
	r.Register(&Command{
		Name:        "guest",
		ShortName:   "g",
		Description: "Play as a guest",
		Usage:       "guest",
		Handler:     guestHandler,
	})
	r.Register(&Command{
		Name:        "login",
		ShortName:   "l",
		Description: "Login with credentials",
		Usage:       "login <username>",
		Handler:     loginHandler,
	})
	r.Register(&Command{
		Name:        "register",
		ShortName:   "r",
		Description: "Register a new user and login",
		Usage:       "register <username>",
		Handler:     registerHandler,
	})
	r.Register(&Command{
		Name:        "logout",
		ShortName:   "o",
		Description: "Disconnect and forget the saved token",
		Usage:       "logout",
		Handler:     logoutHandler,
	})
}

func (r *Registry) registerGameCommands() {
	r.Register(&Command{
		Name:        "find",
		ShortName:   "f",
		Description: "Search for an opponent",
		Usage:       "find",
		Handler:     findHandler,
	})
	r.Register(&Command{
		Name:        "move",
		ShortName:   "m",
		Description: "Make a move",
		Usage:       "move <from><to> | move <from> <to>",
		Handler:     moveHandler,
	})
	r.Register(&Command{
		Name:        "resign",
		ShortName:   "q",
		Description: "Resign, or abort before both sides moved",
		Usage:       "resign",
		Handler:     resignHandler,
	})
	r.Register(&Command{
		Name:        "status",
		ShortName:   "s",
		Description: "Show connection and game status",
		Usage:       "status",
		Handler:     statusHandler,
	})
	r.Register(&Command{
		Name:        "board",
		ShortName:   "b",
		Description: "Show the board",
		Usage:       "board",
		Handler:     boardHandler,
	})
}

func guestHandler(r *Registry, args []string) error {
	ctx, cancel := r.ctx()
	defer cancel()
	tok, err := r.deps.Auth.Guest(ctx)
	if err != nil {
		return err
	}
	return r.useToken(tok, "guest")
}

func loginHandler(r *Registry, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: login <username>")
	}
	password, err := r.deps.ReadPassword("Password: ")
	if err != nil {
		return err
	}
	ctx, cancel := r.ctx()
	defer cancel()
	tok, err := r.deps.Auth.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	return r.useToken(tok, args[0])
}

func registerHandler(r *Registry, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: register <username>")
	}
	password, err := r.deps.ReadPassword("Password: ")
	if err != nil {
		return err
	}
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.deps.Auth.Register(ctx, args[0], password); err != nil {
		return err
	}
	tok, err := r.deps.Auth.Login(ctx, args[0], password)
	if err != nil {
		return fmt.Errorf("registered but login failed: %w", err)
	}
	return r.useToken(tok, args[0])
}

func (r *Registry) useToken(tok, who string) error {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.deps.Tokens.Save(ctx, tok); err != nil {
		r.printf("%sWarning: token not saved: %s%s\n", r.pal.yellow, err, r.pal.reset)
	}
	if err := r.deps.Arena.SetToken(tok); err != nil {
		return err
	}
	r.printf("%sLogged in as %s%s\n", r.pal.green, who, r.pal.reset)
	return nil
}

func logoutHandler(r *Registry, args []string) error {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.deps.Tokens.Clear(ctx); err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
		return err
	}
	if err := r.deps.Arena.ClearToken(); err != nil {
		return err
	}
	r.printf("%sLogged out%s\n", r.pal.green, r.pal.reset)
	return nil
}

func findHandler(r *Registry, args []string) error {
	if err := r.deps.Arena.FindMatch(); err != nil {
		return err
	}
	r.printf("%s\n", r.deps.Texts.MustRender("lobby.searching", nil))
	return nil
}

func moveHandler(r *Registry, args []string) error {
	from, to, err := parseMove(args)
	if err != nil {
		return err
	}
	if !r.deps.Arena.AttemptMove(from, to) {
		return fmt.Errorf("move %s%s not possible now", from, to)
	}
	r.printf("%s\n", r.deps.Texts.MustRender("game.pending", nil))
	return nil
}

// parseMove accepts "e2e4", "e2 e4" and "e2-e4".
func parseMove(args []string) (string, string, error) {
	joined := strings.ToLower(strings.ReplaceAll(strings.Join(args, ""), "-", ""))
	if len(joined) != 4 || !isSquare(joined[:2]) || !isSquare(joined[2:]) {
		return "", "", errors.New("usage: move <from><to>, e.g. move e2e4")
	}
	return joined[:2], joined[2:], nil
}

func isSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

func resignHandler(r *Registry, args []string) error {
	typ, err := r.deps.Arena.Terminate()
	if err != nil {
		return err
	}
	if typ == protocol.TypeAbort {
		r.printf("Abort requested\n")
	} else {
		r.printf("Resignation sent\n")
	}
	return nil
}

func statusHandler(r *Registry, args []string) error {
	r.printf("%s", r.Status(r.deps.Arena.Snapshot()))
	return nil
}

func boardHandler(r *Registry, args []string) error {
	s := r.deps.Arena.Snapshot()
	if s.Game.Phase == game.PhaseIdle {
		return game.ErrNoActiveGame
	}
	r.printf("%s", r.board(s.Game))
	return nil
}
