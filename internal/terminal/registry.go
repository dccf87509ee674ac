package terminal

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/park285/cheese-arena-client/internal/arena"
	"github.com/park285/cheese-arena-client/internal/game"
	"github.com/park285/cheese-arena-client/internal/msgcat"
	"github.com/park285/cheese-arena-client/internal/tokenstore"
	"github.com/park285/cheese-arena-client/pkg/protocol"
)

// Arena is the slice of arena.Client the commands drive.
type Arena interface {
	SetToken(token string) error
	ClearToken() error
	FindMatch() error
	AttemptMove(from, to string) bool
	Terminate() (protocol.CommandType, error)
	Snapshot() arena.Snapshot
}

// Authenticator obtains bearer tokens.
type Authenticator interface {
	Guest(ctx context.Context) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) error
}

type Deps struct {
	Arena  Arena
	Auth   Authenticator
	Tokens tokenstore.Store
	Texts  *msgcat.Catalog
	Out    io.Writer
	// ReadPassword prompts without echo.
	ReadPassword func(prompt string) (string, error)
	Color        bool
}

// Command defines a client command with its handler.
type Command struct {
	Name        string
	ShortName   string
	Description string
	Usage       string
	Handler     func(r *Registry, args []string) error
}

type Registry struct {
	deps     Deps
	pal      palette
	commands map[string]*Command
}

func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps, pal: newPalette(deps.Color), commands: make(map[string]*Command)}
	r.registerAuthCommands()
	r.registerGameCommands()
	r.Register(&Command{
		Name:        "help",
		ShortName:   "?",
		Description: "Show available commands",
		Usage:       "help [command]",
		Handler:     helpHandler,
	})
	return r
}

func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	if cmd.ShortName != "" {
		r.commands[cmd.ShortName] = cmd
	}
}

// Execute runs one input line and reports errors to Out.
func (r *Registry) Execute(input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}
	cmd, ok := r.commands[parts[0]]
	if !ok {
		r.printf("%sUnknown command: %s%s\n", r.pal.red, parts[0], r.pal.reset)
		r.printf("Type 'help' for available commands\n")
		return
	}
	if err := cmd.Handler(r, parts[1:]); err != nil {
		r.printf("%sError: %s%s\n", r.pal.red, err.Error(), r.pal.reset)
	}
}

// Prompt reflects the connection and game state.
func (r *Registry) Prompt() string {
	s := r.deps.Arena.Snapshot()
	base := "arena"
	switch {
	case s.Game.Phase == game.PhasePlaying || s.Game.Phase == game.PhasePregame:
		base = fmt.Sprintf("arena [#%d %s]", s.Game.GameID, s.Game.PlayerColor)
	case s.Searching:
		base = "arena [searching]"
	case !s.Authenticated:
		base = "arena [" + string(s.Connection) + "]"
	}
	return r.pal.yellow + base + " > " + r.pal.reset
}

func (r *Registry) printf(format string, args ...any) {
	fmt.Fprintf(r.deps.Out, format, args...)
}

func (r *Registry) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

func helpHandler(r *Registry, args []string) error {
	if len(args) > 0 {
		cmd, ok := r.commands[args[0]]
		if !ok {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		r.printf("\n%s%s%s - %s\n", r.pal.cyan, cmd.Name, r.pal.reset, cmd.Description)
		if cmd.ShortName != "" {
			r.printf("Short form: %s%s%s\n", r.pal.cyan, cmd.ShortName, r.pal.reset)
		}
		r.printf("Usage: %s\n", cmd.Usage)
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, cmd := range r.commands {
		if !seen[cmd.Name] {
			seen[cmd.Name] = true
			names = append(names, cmd.Name)
		}
	}
	sort.Strings(names)
	r.printf("\n%sAvailable Commands:%s\n", r.pal.cyan, r.pal.reset)
	for _, n := range names {
		cmd := r.commands[n]
		short := ""
		if cmd.ShortName != "" {
			short = fmt.Sprintf("[%s%s%s] ", r.pal.cyan, cmd.ShortName, r.pal.reset)
		}
		r.printf("  %s%-10s %s\n", short, cmd.Name, cmd.Description)
	}
	r.printf("\nType 'help <command>' for detailed usage\n")
	return nil
}
