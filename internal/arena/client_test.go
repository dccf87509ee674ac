package arena

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-arena-client/internal/game"
	"github.com/park285/cheese-arena-client/internal/rules"
	"github.com/park285/cheese-arena-client/internal/session"
	"github.com/park285/cheese-arena-client/pkg/protocol"
)

type fakeTransport struct {
	mu     sync.Mutex
	frames chan string
	closed bool
}

func (f *fakeTransport) Send(_ context.Context, data []byte) error {
	f.frames <- string(data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

type fakeDialer struct {
	calls chan session.Events
}

func (d *fakeDialer) Dial(_ context.Context, _ string, ev session.Events) error {
	d.calls <- ev
	return nil
}

func startClient(t *testing.T, opts Options) (*Client, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{calls: make(chan session.Events, 4)}
	if opts.SocketURL == "" {
		opts.SocketURL = "ws://test/ws"
	}
	c := New(opts, d, rules.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return c, d
}

func waitFor(t *testing.T, snaps <-chan Snapshot, what string, ok func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s, open := <-snaps:
			if !open {
				t.Fatalf("subscription closed while waiting for %s", what)
			}
			if ok(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func nextFrame(t *testing.T, tr *fakeTransport) string {
	t.Helper()
	select {
	case f := <-tr.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame sent")
		return ""
	}
}

// connect authenticates a client through the fake dialer.
func connect(t *testing.T, c *Client, d *fakeDialer, snaps <-chan Snapshot) (session.Events, *fakeTransport) {
	t.Helper()
	if err := c.SetToken("tok"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	ev := <-d.calls
	tr := &fakeTransport{frames: make(chan string, 8)}
	ev.Open(tr)
	if f := nextFrame(t, tr); f != `{"type":"auth","token":"tok"}` {
		t.Fatalf("unexpected auth frame %q", f)
	}
	ev.Message([]byte(`{"type":"auth_success"}`))
	waitFor(t, snaps, "authenticated", func(s Snapshot) bool { return s.Authenticated })
	return ev, tr
}

func TestFindMatchRequiresAuthentication(t *testing.T) {
	c, _ := startClient(t, Options{})
	if err := c.FindMatch(); !errors.Is(err, session.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if c.AttemptMove("e2", "e4") {
		t.Fatalf("move accepted without a game")
	}
	if _, err := c.Terminate(); !errors.Is(err, game.ErrNoActiveGame) {
		t.Fatalf("expected ErrNoActiveGame, got %v", err)
	}
}

func TestSearchingUntilGameStart(t *testing.T) {
	c, d := startClient(t, Options{TickInterval: time.Hour})
	snaps, cancel := c.Subscribe(8)
	defer cancel()
	ev, tr := connect(t, c, d, snaps)

	if err := c.FindMatch(); err != nil {
		t.Fatalf("find match: %v", err)
	}
	if f := nextFrame(t, tr); f != `{"type":"find_match"}` {
		t.Fatalf("unexpected frame %q", f)
	}
	if !c.Snapshot().Searching {
		t.Fatalf("expected searching after find_match")
	}

	ev.Message([]byte(`{"type":"game_start","gameId":42,"color":"b","whiteTime":300000,"blackTime":300000}`))
	s := waitFor(t, snaps, "pregame", func(s Snapshot) bool { return s.Game.Phase == game.PhasePregame })
	if s.Searching || s.Game.PlayerColor != protocol.Black || s.Game.Countdown != 3 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if err := c.FindMatch(); !errors.Is(err, game.ErrGameActive) {
		t.Fatalf("expected ErrGameActive during a game, got %v", err)
	}
}

func TestCountdownAndClockRunOnTheLoop(t *testing.T) {
	c, d := startClient(t, Options{TickInterval: 5 * time.Millisecond})
	snaps, cancel := c.Subscribe(8)
	defer cancel()
	ev, _ := connect(t, c, d, snaps)

	ev.Message([]byte(`{"type":"game_start","gameId":1,"color":"w","whiteTime":60000,"blackTime":60000}`))
	waitFor(t, snaps, "playing", func(s Snapshot) bool { return s.Game.Phase == game.PhasePlaying })
	s := waitFor(t, snaps, "white clock ticking", func(s Snapshot) bool { return s.Game.Clocks.White < 60000 })
	if s.Game.Clocks.Black != 60000 {
		t.Fatalf("black clock ticked on white's turn: %+v", s.Game.Clocks)
	}
}

func TestServerErrorSurfacesAndRollsBack(t *testing.T) {
	c, d := startClient(t, Options{TickInterval: time.Millisecond})
	snaps, cancel := c.Subscribe(8)
	defer cancel()
	ev, tr := connect(t, c, d, snaps)

	ev.Message([]byte(`{"type":"game_start","gameId":7,"color":"w","whiteTime":60000,"blackTime":60000}`))
	waitFor(t, snaps, "playing", func(s Snapshot) bool { return s.Game.Phase == game.PhasePlaying })

	if !c.AttemptMove("e2", "e4") {
		t.Fatalf("legal move rejected")
	}
	if f := nextFrame(t, tr); f != `{"type":"move","gameId":7,"move":{"from":"e2","to":"e4"}}` {
		t.Fatalf("unexpected move frame %q", f)
	}
	if !c.Snapshot().Game.Pending {
		t.Fatalf("expected a pending move")
	}
	ev.Message([]byte(`{"type":"error","message":"Illegal move"}`))
	s := waitFor(t, snaps, "rollback", func(s Snapshot) bool { return !s.Game.Pending && s.LastError != "" })
	if s.Game.BoardState != rules.StartFEN || s.LastError != "Illegal move" {
		t.Fatalf("unexpected snapshot after rejection: %+v", s)
	}
}

func TestTransportDropAbandonsGame(t *testing.T) {
	c, d := startClient(t, Options{TickInterval: time.Hour})
	snaps, cancel := c.Subscribe(8)
	defer cancel()
	ev, _ := connect(t, c, d, snaps)

	ev.Message([]byte(`{"type":"game_start","gameId":3,"color":"w","whiteTime":1000,"blackTime":1000}`))
	waitFor(t, snaps, "pregame", func(s Snapshot) bool { return s.Game.Phase == game.PhasePregame })

	ev.Close(errors.New("connection reset"))
	s := waitFor(t, snaps, "disconnected", func(s Snapshot) bool { return s.Connection == session.Disconnected })
	if s.Game.Phase != game.PhaseIdle {
		t.Fatalf("game survived transport drop: %+v", s.Game)
	}
	if !strings.Contains(s.LastError, "connection reset") {
		t.Fatalf("drop not surfaced: %q", s.LastError)
	}
}

func TestAuthTimeoutSurfacesError(t *testing.T) {
	c, d := startClient(t, Options{AuthTimeout: 20 * time.Millisecond})
	snaps, cancel := c.Subscribe(8)
	defer cancel()
	if err := c.SetToken("tok"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	ev := <-d.calls
	tr := &fakeTransport{frames: make(chan string, 8)}
	ev.Open(tr)
	waitFor(t, snaps, "connected", func(s Snapshot) bool { return s.Connection == session.Connected })
	s := waitFor(t, snaps, "timeout", func(s Snapshot) bool { return s.Connection == session.Disconnected })
	if s.LastError != session.ErrAuthTimeout.Error() {
		t.Fatalf("expected auth timeout error, got %q", s.LastError)
	}
}

func TestIntentsAfterStopReturnErrClosed(t *testing.T) {
	d := &fakeDialer{calls: make(chan session.Events, 1)}
	c := New(Options{SocketURL: "ws://test"}, d, rules.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- c.Run(ctx) }()

	snaps, _ := c.Subscribe(1)
	<-snaps
	cancel()
	if err := <-stopped; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v", err)
	}
	for range snaps {
	}
	if err := c.SetToken("tok"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if c.AttemptMove("e2", "e4") {
		t.Fatalf("move accepted after stop")
	}
}

func TestDeliverKeepsLatest(t *testing.T) {
	ch := make(chan Snapshot, 1)
	deliver(ch, Snapshot{LastError: "first"})
	deliver(ch, Snapshot{LastError: "second"})
	if s := <-ch; s.LastError != "second" {
		t.Fatalf("expected latest snapshot, got %q", s.LastError)
	}
}
