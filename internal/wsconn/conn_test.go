package wsconn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func wsURLFromHTTP(u string) string {
	return "ws" + strings.TrimPrefix(u, "http")
}

// echoServer writes back every frame it receives, and closes after "bye".
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "bye")
		for {
			typ, data, err := c.Read(r.Context())
			if err != nil {
				return
			}
			if string(data) == "bye" {
				c.Close(websocket.StatusNormalClosure, "server done")
				return
			}
			if err := c.Write(r.Context(), typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

type recorder struct {
	opened chan struct{}
	msgs   chan string
	closed chan error
}

func newRecorder() *recorder {
	return &recorder{opened: make(chan struct{}, 1), msgs: make(chan string, 8), closed: make(chan error, 1)}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnOpen:    func(*Conn) { r.opened <- struct{}{} },
		OnMessage: func(b []byte) { r.msgs <- string(b) },
		OnClose:   func(err error) { r.closed <- err },
	}
}

func TestDialSendReceive(t *testing.T) {
	ts := echoServer(t)
	rec := newRecorder()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURLFromHTTP(ts.URL), rec.handlers(), WithPingInterval(0))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	select {
	case <-rec.opened:
	default:
		t.Fatalf("OnOpen must fire before Dial returns")
	}
	if err := c.Send(ctx, []byte(`{"type":"auth","token":"abc"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case m := <-rec.msgs:
		if m != `{"type":"auth","token":"abc"}` {
			t.Fatalf("unexpected echo %q", m)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for echo")
	}
}

func TestRemoteCloseReportsError(t *testing.T) {
	ts := echoServer(t)
	rec := newRecorder()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURLFromHTTP(ts.URL), rec.handlers(), WithPingInterval(0))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Send(ctx, []byte("bye")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case err := <-rec.closed:
		if err == nil {
			t.Fatalf("expected non-nil close cause for remote close")
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for OnClose")
	}
	if err := c.Send(ctx, []byte("late")); err != ErrClosed {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestLocalCloseReportsNil(t *testing.T) {
	ts := echoServer(t)
	rec := newRecorder()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURLFromHTTP(ts.URL), rec.handlers(), WithPingInterval(0))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	_ = c.Close()
	_ = c.Close()
	select {
	case err := <-rec.closed:
		if err != nil {
			t.Fatalf("expected nil cause for local close, got %v", err)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for OnClose")
	}
	select {
	case <-c.Done():
	case <-ctx.Done():
		t.Fatalf("read loop did not exit")
	}
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/none", Handlers{}, WithDialTimeout(500*time.Millisecond)); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestHeadersAreForwarded(t *testing.T) {
	got := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Session-Id")
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c.Close(websocket.StatusNormalClosure, "")
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURLFromHTTP(ts.URL), Handlers{}, WithPingInterval(0),
		WithHeaderProvider(func() map[string]string { return map[string]string{"X-Session-Id": "s1", " ": "x"} }))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	if v := <-got; v != "s1" {
		t.Fatalf("header = %q", v)
	}
}
