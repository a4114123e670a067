// Package announcer periodically announces one torrent to one tracker on
// its own goroutine, posting responses (or errors) back to the torrent
// coordinator without ever blocking its select loop on network I/O.
package announcer

import (
	"context"
	"time"

	"github.com/nimbus-bt/nimbus/internal/tracker"
)

// DefaultInterval is the wait between announces until a tracker response
// supplies a positive interval; a later response without one keeps the
// last interval received.
const DefaultInterval = 30 * time.Second

// Request asks the announcer to build the next Torrent snapshot to send;
// it is called fresh before every announce so uploaded/downloaded/left
// reflect current state.
type Request func() tracker.Torrent

// Result is posted after each announce attempt, successful or not.
type Result struct {
	Response *tracker.Response
	Error    error
}

// Announcer drives one tracker's periodic announce loop.
type Announcer struct {
	Tracker tracker.Tracker

	request     Request
	resultC     chan Result
	minInterval time.Duration
	triggerC    chan tracker.Event
	closeC      chan struct{}
	doneC       chan struct{}
}

// New starts announcing immediately (with EventStarted folded in by the
// caller's Request) and then again after each response's interval, floored
// at minInterval so a misconfigured or hostile tracker cannot force
// excessive announce traffic.
func New(t tracker.Tracker, request Request, minInterval time.Duration, resultC chan Result) *Announcer {
	a := &Announcer{
		Tracker:     t,
		request:     request,
		resultC:     resultC,
		minInterval: minInterval,
		triggerC:    make(chan tracker.Event, 1),
		closeC:      make(chan struct{}),
		doneC:       make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Announcer) run() {
	defer close(a.doneC)

	interval := DefaultInterval
	var override *tracker.Event
	for {
		req := a.request()
		if override != nil {
			req.Event = *override
			override = nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), tracker.DefaultTimeout)
		resp, err := a.Tracker.Announce(ctx, req)
		cancel()

		select {
		case a.resultC <- Result{Response: resp, Error: err}:
		case <-a.closeC:
			return
		}

		if err == nil && resp.Interval > 0 {
			interval = time.Duration(resp.Interval) * time.Second
		}
		if interval < a.minInterval {
			interval = a.minInterval
		}

		select {
		case <-time.After(interval):
		case ev := <-a.triggerC:
			override = &ev
		case <-a.closeC:
			return
		}
	}
}

// Announce requests an out-of-band announce carrying event on this
// Announcer's own goroutine. It cuts short the current wait, and the next
// periodic wait starts over after the out-of-band announce.
// Best-effort: dropped if one is already pending.
func (a *Announcer) Announce(event tracker.Event) {
	select {
	case a.triggerC <- event:
	default:
	}
}

// Close stops the announce loop and waits for it to exit.
func (a *Announcer) Close() {
	close(a.closeC)
	<-a.doneC
}

// StopAnnouncer performs a single final announce with EventStopped and
// returns once it completes or ctx expires, used during graceful shutdown
// so well-behaved trackers can drop us from their peer list promptly.
func StopAnnouncer(ctx context.Context, t tracker.Tracker, final tracker.Torrent) error {
	final.Event = tracker.EventStopped
	_, err := t.Announce(ctx, final)
	return err
}
