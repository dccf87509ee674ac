package arena

import (
	"reflect"

	"github.com/park285/cheese-arena-client/internal/game"
	"github.com/park285/cheese-arena-client/internal/session"
)

// Snapshot is what a presentation layer renders. Values are immutable copies.
type Snapshot struct {
	SessionID     string
	Connection    session.State
	Authenticated bool
	// Searching is true between find_match and game_start.
	Searching bool
	Game      game.State
	LastError string
}

// Snapshot returns the most recently published state.
func (c *Client) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Subscribe delivers every published snapshot, starting with the current one.
// A slow subscriber only ever sees the latest value. The channel is closed by
// cancel or when the client stops.
func (c *Client) Subscribe(buf int) (<-chan Snapshot, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Snapshot, buf)
	id := -1
	if err := c.do(func() {
		id = c.nextSub
		c.nextSub++
		c.subs[id] = ch
		ch <- c.current
	}); err != nil {
		close(ch)
		return ch, func() {}
	}
	cancel := func() {
		_ = c.do(func() {
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (c *Client) snapshot() Snapshot {
	return Snapshot{
		SessionID:     c.session.ID(),
		Connection:    c.session.State(),
		Authenticated: c.session.Authenticated(),
		Searching:     c.searching,
		Game:          c.machine.State(),
		LastError:     c.lastError,
	}
}

func (c *Client) publish() {
	s := c.snapshot()
	if reflect.DeepEqual(s, c.current) {
		return
	}
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
	for _, ch := range c.subs {
		deliver(ch, s)
	}
}

// deliver replaces whatever the subscriber has not read yet.
func deliver(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
