package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena-client/internal/wsconn"
	"github.com/park285/cheese-arena-client/pkg/protocol"
)

// State is the connection state of a Session.
type State string

const (
	Disconnected  State = "disconnected"
	Connecting    State = "connecting"
	Connected     State = "connected"
	Authenticated State = "authenticated"
)

var (
	ErrAuthRequired = errors.New("session not authenticated")
	ErrAuthTimeout  = errors.New("auth handshake timed out")
	ErrNotConnected = errors.New("session not connected")
)

const (
	defaultAuthTimeout = 10 * time.Second
	defaultSendTimeout = time.Second
)

// Transport is one open socket.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Close() error
}

// Events are fired by a Dialer from its own goroutines.
type Events struct {
	Open    func(t Transport)
	Message func(data []byte)
	Close   func(err error)
}

// Dialer opens a transport and reports its lifecycle through Events.
// Dial returns once the socket is open (after Open) or failed.
type Dialer interface {
	Dial(ctx context.Context, url string, ev Events) error
}

// WSDialer dials real websockets through wsconn.
type WSDialer struct {
	Options []wsconn.Option
}

func (d WSDialer) Dial(ctx context.Context, url string, ev Events) error {
	_, err := wsconn.Dial(ctx, url, wsconn.Handlers{
		OnOpen:    func(c *wsconn.Conn) { ev.Open(c) },
		OnMessage: ev.Message,
		OnClose:   ev.Close,
	}, d.Options...)
	return err
}

type Config struct {
	URL         string
	AuthTimeout time.Duration
	// SendTimeout bounds each write, since writes run on the owner goroutine.
	SendTimeout time.Duration
}

// Hooks are invoked on the owner goroutine.
type Hooks struct {
	OnState   func(State)
	OnEvent   func(protocol.ServerEvent)
	OnFailure func(error)
}

// Session authenticates one transport with a bearer token and gates outbound
// traffic until the server has confirmed it.
//
// Session is not safe for concurrent use. Every method must run on the owner
// goroutine; transport callbacks are marshalled back through post.
type Session struct {
	cfg    Config
	dialer Dialer
	post   func(func())
	hooks  Hooks
	logger *zap.Logger

	token string
	id    string
	state State

	// gen invalidates callbacks from transports and timers that were replaced
	gen        uint64
	transport  Transport
	authTimer  *time.Timer
	cancelDial context.CancelFunc
}

func New(cfg Config, dialer Dialer, post func(func()), hooks Hooks, logger *zap.Logger) *Session {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{cfg: cfg, dialer: dialer, post: post, hooks: hooks, logger: logger, state: Disconnected}
}

func (s *Session) State() State { return s.state }

// ID identifies the current token's session; empty without a token.
func (s *Session) ID() string { return s.id }

func (s *Session) Authenticated() bool { return s.state == Authenticated }

// SetToken supplies the credential. The same token on a live session is a
// no-op; any other token replaces the session and reconnects. An empty token
// behaves like ClearToken.
func (s *Session) SetToken(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		s.ClearToken()
		return
	}
	if token == s.token && s.state != Disconnected {
		return
	}
	s.teardown()
	s.token = token
	s.id = uuid.NewString()
	s.connect()
}

// ClearToken closes the transport and forgets the credential.
func (s *Session) ClearToken() {
	s.teardown()
	if s.id != "" {
		s.logger.Info("session_cleared", zap.String("session_id", s.id))
	}
	s.token = ""
	s.id = ""
}

// Close tears the transport down but keeps the token for a later SetToken.
func (s *Session) Close() {
	s.teardown()
}

// Send encodes and writes a command. Only an authenticated session may send.
func (s *Session) Send(ctx context.Context, cmd protocol.ClientCommand) error {
	if s.state != Authenticated || s.transport == nil {
		return ErrAuthRequired
	}
	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}
	if err := s.write(ctx, s.transport, data); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Type(), err)
	}
	s.logger.Debug("command_sent", zap.String("session_id", s.id), zap.String("type", string(cmd.Type())))
	return nil
}

func (s *Session) write(ctx context.Context, t Transport, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	return t.Send(ctx, data)
}

func (s *Session) connect() {
	s.gen++
	gen := s.gen
	url := s.cfg.URL
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelDial = cancel
	s.setState(Connecting)

	ev := Events{
		Open:    func(t Transport) { s.post(func() { s.handleOpen(gen, t) }) },
		Message: func(data []byte) { s.post(func() { s.handleFrame(gen, data) }) },
		Close:   func(err error) { s.post(func() { s.handleClose(gen, err) }) },
	}
	go func() {
		if err := s.dialer.Dial(ctx, url, ev); err != nil {
			s.post(func() { s.handleDialError(gen, err) })
		}
	}()
}

func (s *Session) handleOpen(gen uint64, t Transport) {
	if gen != s.gen {
		_ = t.Close()
		return
	}
	s.transport = t
	s.setState(Connected)

	data, err := protocol.Encode(protocol.Auth{Token: s.token})
	if err == nil {
		err = s.write(context.Background(), t, data)
	}
	if err != nil {
		s.logger.Warn("auth_send_error", zap.String("session_id", s.id), zap.Error(err))
		s.teardown()
		s.fail(fmt.Errorf("auth: %w", err))
		return
	}
	s.authTimer = time.AfterFunc(s.cfg.AuthTimeout, func() {
		s.post(func() { s.handleAuthTimeout(gen) })
	})
}

func (s *Session) handleFrame(gen uint64, data []byte) {
	if gen != s.gen {
		return
	}
	ev, err := protocol.Decode(data)
	if err != nil {
		s.logger.Warn("frame_decode_error", zap.String("session_id", s.id), zap.Error(err))
		return
	}
	switch ev.(type) {
	case protocol.AuthSuccess:
		if s.state != Connected {
			s.logger.Debug("auth_success_ignored", zap.String("session_id", s.id), zap.String("state", string(s.state)))
			return
		}
		s.stopAuthTimer()
		s.setState(Authenticated)
		return
	case protocol.Error:
		// auth rejections arrive before auth_success
	default:
		if s.state != Authenticated {
			s.logger.Warn("event_before_auth", zap.String("session_id", s.id), zap.String("type", string(ev.Type())))
			return
		}
	}
	if s.hooks.OnEvent != nil {
		s.hooks.OnEvent(ev)
	}
}

func (s *Session) handleClose(gen uint64, err error) {
	if gen != s.gen {
		return
	}
	s.gen++
	s.transport = nil
	s.stopAuthTimer()
	s.cancel()
	s.setState(Disconnected)
	if err != nil {
		s.logger.Warn("session_transport_lost", zap.String("session_id", s.id), zap.Error(err))
		s.fail(fmt.Errorf("connection lost: %w", err))
	}
}

func (s *Session) handleDialError(gen uint64, err error) {
	if gen != s.gen {
		return
	}
	s.gen++
	s.cancel()
	s.setState(Disconnected)
	s.fail(fmt.Errorf("dial: %w", err))
}

func (s *Session) handleAuthTimeout(gen uint64) {
	if gen != s.gen || s.state != Connected {
		return
	}
	s.logger.Warn("auth_timeout", zap.String("session_id", s.id), zap.Duration("timeout", s.cfg.AuthTimeout))
	s.teardown()
	s.fail(ErrAuthTimeout)
}

// teardown invalidates every pending callback and closes the transport.
func (s *Session) teardown() {
	s.gen++
	s.stopAuthTimer()
	s.cancel()
	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			s.logger.Debug("transport_close_error", zap.String("session_id", s.id), zap.Error(err))
		}
		s.transport = nil
	}
	s.setState(Disconnected)
}

func (s *Session) cancel() {
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
}

func (s *Session) stopAuthTimer() {
	if s.authTimer != nil {
		s.authTimer.Stop()
		s.authTimer = nil
	}
}

func (s *Session) setState(st State) {
	if st == s.state {
		return
	}
	s.logger.Info("session_state", zap.String("session_id", s.id), zap.String("from", string(s.state)), zap.String("to", string(st)))
	s.state = st
	if s.hooks.OnState != nil {
		s.hooks.OnState(st)
	}
}

func (s *Session) fail(err error) {
	if s.hooks.OnFailure != nil {
		s.hooks.OnFailure(err)
	}
}
