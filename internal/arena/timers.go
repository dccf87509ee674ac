package arena

import "time"

// loopTimers implements game.Timers. Ticks are posted to the loop and carry
// the generation they were started in; Stop bumps the generation so ticks
// already queued become no-ops.
type loopTimers struct {
	c *Client

	gen   uint64
	stops []chan struct{}
	exits []*time.Timer
}

func (t *loopTimers) StartCountdown() {
	t.every(t.c.opts.TickInterval, t.c.machine.CountdownTick)
}

func (t *loopTimers) StartClock() {
	t.every(t.c.opts.TickInterval, t.c.machine.ClockTick)
}

func (t *loopTimers) ScheduleExit(gameID int64) {
	gen := t.gen
	t.exits = append(t.exits, time.AfterFunc(t.c.opts.ExitDelay, func() {
		t.c.post(func() {
			if gen == t.gen {
				t.c.navigateTo(gameID)
			}
		})
	}))
}

func (t *loopTimers) Stop() {
	t.gen++
	for _, ch := range t.stops {
		close(ch)
	}
	t.stops = nil
	for _, tm := range t.exits {
		tm.Stop()
	}
	t.exits = nil
}

func (t *loopTimers) every(d time.Duration, tick func()) {
	gen := t.gen
	stop := make(chan struct{})
	t.stops = append(t.stops, stop)
	go func() {
		tk := time.NewTicker(d)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.c.done:
				return
			case <-tk.C:
				t.c.post(func() {
					if gen == t.gen {
						tick()
					}
				})
			}
		}
	}()
}
