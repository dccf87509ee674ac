package arena

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena-client/internal/game"
	"github.com/park285/cheese-arena-client/internal/rules"
	"github.com/park285/cheese-arena-client/internal/session"
	"github.com/park285/cheese-arena-client/pkg/protocol"
)

var ErrClosed = errors.New("arena client closed")

const inboxSize = 64

type Options struct {
	SocketURL      string
	AuthTimeout    time.Duration
	SendTimeout    time.Duration
	TickInterval   time.Duration
	CountdownTicks int
	// ExitDelay separates game over from the navigate signal.
	ExitDelay    time.Duration
	InitialBoard string
}

func (o *Options) applyDefaults() {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.CountdownTicks <= 0 {
		o.CountdownTicks = 3
	}
	if o.ExitDelay <= 0 {
		o.ExitDelay = 3 * time.Second
	}
	if o.InitialBoard == "" {
		o.InitialBoard = rules.StartFEN
	}
}

// Client owns one Session and at most one GameSession. Transport events,
// timer ticks and user intents are all serialised through a single loop, so
// none of the owned state needs locking. Run must be running for any intent
// to complete.
type Client struct {
	opts   Options
	logger *zap.Logger

	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once

	session *session.Session
	machine *game.Machine
	timers  *loopTimers

	searching bool
	lastError string
	navigate  []func(gameID int64)
	subs      map[int]chan Snapshot
	nextSub   int

	mu      sync.RWMutex
	current Snapshot
}

func New(opts Options, dialer session.Dialer, engine game.Rules, logger *zap.Logger) *Client {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		opts:   opts,
		logger: logger,
		inbox:  make(chan func(), inboxSize),
		done:   make(chan struct{}),
		subs:   make(map[int]chan Snapshot),
	}
	c.timers = &loopTimers{c: c}
	c.session = session.New(session.Config{URL: opts.SocketURL, AuthTimeout: opts.AuthTimeout, SendTimeout: opts.SendTimeout}, dialer, c.post, session.Hooks{
		OnState:   c.onSessionState,
		OnEvent:   c.onEvent,
		OnFailure: c.onFailure,
	}, logger.With(zap.String("component", "session")))
	c.machine = game.NewMachine(game.Config{
		InitialBoard:   opts.InitialBoard,
		CountdownTicks: opts.CountdownTicks,
		TickMillis:     opts.TickInterval.Milliseconds(),
	}, engine, c.session, c.timers, logger.With(zap.String("component", "game")))
	c.current = c.snapshot()
	return c
}

// Run processes the inbox until ctx is done, then closes the transport and
// cancels every timer.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info("arena_loop_start")
	defer c.shutdown()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("arena_loop_stop", zap.Error(ctx.Err()))
			return ctx.Err()
		case fn := <-c.inbox:
			fn()
			c.publish()
		}
	}
}

// SetToken supplies or replaces the credential and (re)connects.
func (c *Client) SetToken(token string) error {
	return c.do(func() {
		c.lastError = ""
		c.session.SetToken(token)
	})
}

// ClearToken disconnects and abandons any game in progress.
func (c *Client) ClearToken() error {
	return c.do(func() {
		c.abandon()
		c.lastError = ""
		c.session.ClearToken()
	})
}

// FindMatch asks the server for an opponent.
func (c *Client) FindMatch() error {
	var err error
	if doErr := c.do(func() {
		if c.machine.Active() {
			err = game.ErrGameActive
			return
		}
		if err = c.session.Send(context.Background(), protocol.FindMatch{}); err != nil {
			return
		}
		c.searching = true
		c.lastError = ""
	}); doErr != nil {
		return doErr
	}
	return err
}

// AttemptMove applies a move optimistically; false means nothing happened.
func (c *Client) AttemptMove(from, to string) bool {
	ok := false
	if err := c.do(func() {
		ok = c.machine.AttemptMove(context.Background(), from, to)
	}); err != nil {
		return false
	}
	return ok
}

// Terminate resigns the current game, or aborts it before both sides moved.
func (c *Client) Terminate() (protocol.CommandType, error) {
	var (
		typ protocol.CommandType
		err error
	)
	if doErr := c.do(func() {
		var cmd protocol.ClientCommand
		cmd, err = c.machine.Terminate(context.Background())
		if cmd != nil {
			typ = cmd.Type()
		}
	}); doErr != nil {
		return "", doErr
	}
	return typ, err
}

// OnNavigate registers fn to run once per finished game, ExitDelay after it
// ended. fn runs on the loop; it must not block or call back into the Client
// synchronously.
func (c *Client) OnNavigate(fn func(gameID int64)) error {
	return c.do(func() { c.navigate = append(c.navigate, fn) })
}

// Done is closed when Run has returned.
func (c *Client) Done() <-chan struct{} { return c.done }

// post hands fn to the loop; it is dropped once the client is closed.
func (c *Client) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

// do runs fn on the loop and waits for it.
func (c *Client) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case c.inbox <- func() {
		fn()
		c.publish()
		close(finished)
	}:
	case <-c.done:
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) onSessionState(st session.State) {
	if st == session.Authenticated {
		return
	}
	c.searching = false
	c.abandon()
}

func (c *Client) onEvent(ev protocol.ServerEvent) {
	switch e := ev.(type) {
	case protocol.GameStart:
		c.searching = false
	case protocol.Error:
		c.lastError = e.Message
	}
	c.machine.Apply(ev)
}

func (c *Client) onFailure(err error) {
	c.logger.Warn("session_failure", zap.String("session_id", c.session.ID()), zap.Error(err))
	c.lastError = err.Error()
}

// abandon drops a game that has not finished; a finished one stays visible
// until its navigate signal fires or a new game replaces it.
func (c *Client) abandon() {
	if c.machine.Active() {
		c.machine.Abandon()
	}
}

func (c *Client) navigateTo(gameID int64) {
	c.logger.Info("arena_navigate", zap.Int64("game_id", gameID))
	for _, fn := range c.navigate {
		fn(gameID)
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.timers.Stop()
		c.abandon()
		c.session.Close()
		c.publish()
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		close(c.done)
	})
}
