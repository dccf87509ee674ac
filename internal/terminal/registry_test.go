package terminal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/park285/cheese-arena-client/internal/arena"
	"github.com/park285/cheese-arena-client/internal/game"
	"github.com/park285/cheese-arena-client/internal/msgcat"
	"github.com/park285/cheese-arena-client/internal/rules"
	"github.com/park285/cheese-arena-client/internal/session"
	"github.com/park285/cheese-arena-client/internal/tokenstore"
	"github.com/park285/cheese-arena-client/pkg/protocol"
)

type fakeArena struct {
	token    string
	cleared  bool
	findErr  error
	moves    []string
	moveOK   bool
	snapshot arena.Snapshot
}

func (f *fakeArena) SetToken(token string) error { f.token = token; return nil }
func (f *fakeArena) ClearToken() error          { f.cleared = true; f.token = ""; return nil }
func (f *fakeArena) FindMatch() error           { return f.findErr }
func (f *fakeArena) AttemptMove(from, to string) bool {
	f.moves = append(f.moves, from+to)
	return f.moveOK
}
func (f *fakeArena) Terminate() (protocol.CommandType, error) { return protocol.TypeResign, nil }
func (f *fakeArena) Snapshot() arena.Snapshot                 { return f.snapshot }

type fakeAuth struct {
	registered []string
}

func (f *fakeAuth) Guest(context.Context) (string, error) { return "guest-jwt", nil }
func (f *fakeAuth) Login(_ context.Context, u, p string) (string, error) {
	if p != "pw" {
		return "", errors.New("bad credentials")
	}
	return u + "-jwt", nil
}
func (f *fakeAuth) Register(_ context.Context, u, _ string) error {
	f.registered = append(f.registered, u)
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeArena, *tokenstore.Memory, *bytes.Buffer) {
	t.Helper()
	texts, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	a := &fakeArena{moveOK: true}
	store := tokenstore.NewMemory()
	out := &bytes.Buffer{}
	r := NewRegistry(Deps{
		Arena:        a,
		Auth:         &fakeAuth{},
		Tokens:       store,
		Texts:        texts,
		Out:          out,
		ReadPassword: func(string) (string, error) { return "pw", nil },
	})
	return r, a, store, out
}

func TestLoginSavesAndSuppliesToken(t *testing.T) {
	r, a, store, out := newTestRegistry(t)
	r.Execute("login alice")
	if a.token != "alice-jwt" {
		t.Fatalf("token not supplied: %q (%s)", a.token, out)
	}
	if tok, _ := store.Load(context.Background()); tok != "alice-jwt" {
		t.Fatalf("token not saved: %q", tok)
	}

	r.Execute("o")
	if !a.cleared {
		t.Fatalf("logout did not clear the session")
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Fatalf("token still stored: %v", err)
	}
}

func TestGuestAndRegister(t *testing.T) {
	r, a, _, _ := newTestRegistry(t)
	r.Execute("g")
	if a.token != "guest-jwt" {
		t.Fatalf("guest token = %q", a.token)
	}
	r.Execute("register bob")
	if a.token != "bob-jwt" {
		t.Fatalf("register should login afterwards, token = %q", a.token)
	}
}

func TestMoveCommand(t *testing.T) {
	r, a, _, out := newTestRegistry(t)
	r.Execute("m e2e4")
	r.Execute("move g1 f3")
	r.Execute("move z9z9")
	if strings.Join(a.moves, ",") != "e2e4,g1f3" {
		t.Fatalf("moves = %v", a.moves)
	}
	if !strings.Contains(out.String(), "usage: move") {
		t.Fatalf("bad move not reported: %s", out)
	}

	a.moveOK = false
	out.Reset()
	r.Execute("m d2d4")
	if !strings.Contains(out.String(), "not possible") {
		t.Fatalf("rejected move not reported: %s", out)
	}
}

func TestFindReportsErrors(t *testing.T) {
	r, a, _, out := newTestRegistry(t)
	a.findErr = session.ErrAuthRequired
	r.Execute("find")
	if !strings.Contains(out.String(), session.ErrAuthRequired.Error()) {
		t.Fatalf("error not printed: %s", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	r, _, _, out := newTestRegistry(t)
	r.Execute("castle")
	if !strings.Contains(out.String(), "Unknown command: castle") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestParseMove(t *testing.T) {
	cases := []struct {
		args     []string
		from, to string
		ok       bool
	}{
		{[]string{"e2e4"}, "e2", "e4", true},
		{[]string{"E2", "E4"}, "e2", "e4", true},
		{[]string{"e7-e8"}, "e7", "e8", true},
		{[]string{"e2"}, "", "", false},
		{[]string{"i2i4"}, "", "", false},
	}
	for _, tc := range cases {
		from, to, err := parseMove(tc.args)
		if (err == nil) != tc.ok || from != tc.from || to != tc.to {
			t.Fatalf("parseMove(%v) = %q %q %v", tc.args, from, to, err)
		}
	}
}

func TestChangesNarrateTheGame(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	idle := arena.Snapshot{Connection: session.Authenticated, Authenticated: true, Game: game.State{Phase: game.PhaseIdle}}
	pregame := idle
	pregame.Game = game.State{Phase: game.PhasePregame, GameID: 42, PlayerColor: protocol.White, Countdown: 3, BoardState: rules.StartFEN}

	out := r.changes(idle, pregame)
	if !strings.Contains(out, "Game #42 started") || !strings.Contains(out, "3") {
		t.Fatalf("start not narrated: %q", out)
	}

	playing := pregame
	playing.Game.Phase = game.PhasePlaying
	playing.Game.Countdown = 0
	playing.Game.TurnToMove = protocol.White
	if out := r.changes(pregame, playing); !strings.Contains(out, "Go!") || !strings.Contains(out, "Your move.") {
		t.Fatalf("play start not narrated: %q", out)
	}

	ticked := playing
	ticked.Game.Clocks = game.Clocks{White: 1000}
	if out := r.changes(playing, ticked); out != "" {
		t.Fatalf("clock ticks should be silent, got %q", out)
	}

	over := playing
	over.Game.Phase = game.PhaseOver
	over.Game.Result = &game.Result{Reason: "checkmate", Winner: protocol.WinnerWhite, Result: "1-0"}
	out = r.changes(playing, over)
	if !strings.Contains(out, "Checkmate! White wins.") || !strings.Contains(out, "Result: 1-0") {
		t.Fatalf("game over not narrated: %q", out)
	}

	dropped := idle
	dropped.Connection = session.Disconnected
	dropped.Authenticated = false
	dropped.LastError = "connection lost: EOF"
	out = r.changes(idle, dropped)
	if !strings.Contains(out, "Disconnected.") || !strings.Contains(out, "connection lost") {
		t.Fatalf("drop not narrated: %q", out)
	}
}

func TestStatusShowsClocks(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	s := arena.Snapshot{
		Connection:    session.Authenticated,
		Authenticated: true,
		Game: game.State{
			Phase: game.PhasePlaying, GameID: 7, PlayerColor: protocol.Black,
			TurnToMove: protocol.White, Clocks: game.Clocks{White: 299000, Black: 300000},
			BoardState: rules.StartFEN,
		},
	}
	out := r.Status(s)
	if !strings.Contains(out, "White 04:59 | Black 05:00") || !strings.Contains(out, "Waiting for opponent...") {
		t.Fatalf("unexpected status: %q", out)
	}
}
