// Package navigation turns the three ways a single-page application can
// change its URL into one debounced stream of page changes.
//
// History traversal (back/forward), programmatic history writes
// (pushState/replaceState) and a periodic URL poll all feed Notify. The
// observer waits until signals stop arriving for the debounce window and
// then calls the handler once with the latest URL, provided it differs from
// the URL handled last.
package navigation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/logging"
)

// Signal names the source of a navigation.
type Signal string

const (
	SignalHistory      Signal = "history"
	SignalProgrammatic Signal = "programmatic"
	SignalPoll         Signal = "poll"
)

// Event is one debounced navigation.
type Event struct {
	URL     string
	Signal  Signal
	Signals int
	At      time.Time
}

// Handler receives debounced navigations. It runs on the observer's
// goroutine; a slow handler delays the next event.
type Handler func(ctx context.Context, ev Event)

// Config controls the debounce.
type Config struct {
	// Debounce is the quiet period before the handler fires. Default: 500ms.
	Debounce time.Duration
	// Buffer is the signal queue size. Default: 64.
	Buffer int
}

func (c *Config) defaults() {
	if c.Debounce <= 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.Buffer <= 0 {
		c.Buffer = 64
	}
}

type signal struct {
	url  string
	kind Signal
}

// Observer debounces navigation signals for one page.
type Observer struct {
	cfg     Config
	handler Handler
	logger  *logging.Logger
	signals chan signal
	now     func() time.Time
}

// NewObserver creates an observer.
func NewObserver(cfg Config, handler Handler, logger *logging.Logger) *Observer {
	cfg.defaults()
	return &Observer{
		cfg:     cfg,
		handler: handler,
		logger:  logging.OrNop(logger).Named("navigation"),
		signals: make(chan signal, cfg.Buffer),
		now:     time.Now,
	}
}

// Notify records a signal. It never blocks; when the queue is full the
// signal is dropped, since a later one will carry the same or newer URL.
func (o *Observer) Notify(kind Signal, url string) {
	select {
	case o.signals <- signal{url: url, kind: kind}:
	default:
		o.logger.Debug("navigation signal dropped", zap.String("signal", string(kind)))
	}
}

// Run dispatches debounced events until ctx is done. current is the URL
// the page was on when observation started.
func (o *Observer) Run(ctx context.Context, current string) error {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending signal
		count   int
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sig := <-o.signals:
			if sig.url == "" {
				continue
			}
			if sig.url == current && count == 0 {
				continue
			}
			// Repeats of the pending URL (the poll, mostly) must not keep
			// pushing the deadline out.
			restart := count == 0 || sig.url != pending.url
			pending = sig
			count++
			if restart {
				stop()
				timer = time.NewTimer(o.cfg.Debounce)
				timerC = timer.C
			}

		case <-timerC:
			timer, timerC = nil, nil
			n := count
			count = 0
			if pending.url == current {
				continue
			}
			current = pending.url

			o.logger.Debug("navigation settled",
				zap.String("url", current),
				zap.String("signal", string(pending.kind)),
				zap.Int("signals", n))
			o.handler(ctx, Event{URL: current, Signal: pending.kind, Signals: n, At: o.now()})
		}
	}
}

// Poll reports the page URL every interval as SignalPoll until ctx is done.
// It covers navigations that bypass the history hooks.
func (o *Observer) Poll(ctx context.Context, interval time.Duration, url func(context.Context) (string, error)) error {
	if interval <= 0 {
		return fmt.Errorf("navigation: poll interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			u, err := url(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				o.logger.Debug("url poll failed", zap.Error(err))
				continue
			}
			o.Notify(SignalPoll, u)
		}
	}
}
