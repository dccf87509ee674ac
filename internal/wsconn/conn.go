package wsconn

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

var (
	ErrClosed      = errors.New("websocket closed")
	errPingTimeout = errors.New("ping failure")
)

// HeaderProvider allows injecting handshake headers.
type HeaderProvider func() map[string]string

// Handlers receive the raw connection events. They are invoked from the
// connection's own goroutines and must not block.
type Handlers struct {
	// OnOpen runs once, before the first OnMessage.
	OnOpen    func(c *Conn)
	OnMessage func(data []byte)
	// OnClose runs exactly once; err is nil when Close was called locally.
	OnClose func(err error)
}

type config struct {
	dialTimeout  time.Duration
	writeTimeout time.Duration
	pingInterval time.Duration
	readLimit    int64
	headers      HeaderProvider
	logger       *zap.Logger
}

type Option func(*config)

func WithDialTimeout(d time.Duration) Option {
	return func(c *config) { c.dialTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) { c.writeTimeout = d }
}

// WithPingInterval sets the keepalive cadence. Zero disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(c *config) { c.pingInterval = d }
}

func WithReadLimit(n int64) Option {
	return func(c *config) { c.readLimit = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *config) { c.headers = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Conn owns exactly one physical websocket. It never reconnects; a dropped
// socket is reported through OnClose and the owner decides what to do next.
type Conn struct {
	url  string
	conn *websocket.Conn
	cfg  config
	h    Handlers

	writeM sync.Mutex

	stopCh    chan struct{}
	closeOnce sync.Once
	cause     error
	done      chan struct{}

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// Dial opens the socket, fires OnOpen and starts the read and ping loops.
func Dial(ctx context.Context, url string, h Handlers, opts ...Option) (*Conn, error) {
	cfg := config{
		dialTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
		pingInterval: 30 * time.Second,
		readLimit:    1 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      buildHeaders(cfg.headers),
	})
	if err != nil {
		cfg.logger.Warn("ws_dial_error", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	if cfg.readLimit > 0 {
		conn.SetReadLimit(cfg.readLimit)
	}

	c := &Conn{
		url:    url,
		conn:   conn,
		cfg:    cfg,
		h:      h,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	cfg.logger.Info("ws_open", zap.String("url", url))

	if h.OnOpen != nil {
		h.OnOpen(c)
	}
	go c.listen()
	if cfg.pingInterval > 0 {
		go c.pingLoop()
	}
	return c, nil
}

func (c *Conn) listen() {
	defer close(c.done)
	for {
		_, data, err := c.conn.Read(c.rootCtx)
		if err != nil {
			c.shutdown(err, websocket.StatusGoingAway, "read failure")
			if c.cause != nil {
				c.cfg.logger.Info("ws_closed", zap.String("url", c.url), zap.Error(c.cause))
			} else {
				c.cfg.logger.Info("ws_closed", zap.String("url", c.url))
			}
			if c.h.OnClose != nil {
				c.h.OnClose(c.cause)
			}
			return
		}
		if c.isStopping() {
			continue
		}
		if c.h.OnMessage != nil {
			c.h.OnMessage(data)
		}
	}
}

func (c *Conn) pingLoop() {
	t := time.NewTicker(c.cfg.pingInterval)
	defer t.Stop()
	consecutivePingFailures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := c.conn.Ping(ctx)
			cancel()
			if err == nil {
				consecutivePingFailures = 0
				continue
			}
			consecutivePingFailures++
			if consecutivePingFailures >= 2 {
				c.shutdown(errPingTimeout, websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

// Send writes one text frame. Writes are serialised; a closed socket yields ErrClosed.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if c == nil || c.isStopping() {
		return ErrClosed
	}
	dctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, c.cfg.writeTimeout)
		defer cancel()
	}
	c.writeM.Lock()
	defer c.writeM.Unlock()
	if err := c.conn.Write(dctx, websocket.MessageText, data); err != nil {
		c.cfg.logger.Warn("ws_write_error", zap.String("url", c.url), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the socket without waiting for the close handshake; OnClose(nil)
// follows from the read loop.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.shutdown(nil, websocket.StatusNormalClosure, "close")
	return nil
}

// Done is closed when the read loop has exited.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) shutdown(cause error, code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.cause = cause
		close(c.stopCh)
		go func() {
			_ = c.conn.Close(code, reason)
			c.rootCancel()
		}()
	})
}

func (c *Conn) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func buildHeaders(h HeaderProvider) http.Header {
	hdr := http.Header{}
	if h == nil {
		return hdr
	}
	for k, v := range h() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
