package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func start(t *testing.T, debounce time.Duration, current string) (*Observer, *recorder, context.CancelFunc) {
	t.Helper()
	rec := &recorder{}
	o := NewObserver(Config{Debounce: debounce}, rec.handle, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Run(ctx, current)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return o, rec, cancel
}

func TestBurstCollapsesToLatestURL(t *testing.T) {
	o, rec, _ := start(t, 30*time.Millisecond, "https://jobs.example.com/apply")

	o.Notify(SignalProgrammatic, "https://jobs.example.com/apply/1")
	o.Notify(SignalHistory, "https://jobs.example.com/apply/2")
	o.Notify(SignalPoll, "https://jobs.example.com/apply/2")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "https://jobs.example.com/apply/2", events[0].URL)
	assert.Equal(t, SignalPoll, events[0].Signal)
	assert.Equal(t, 3, events[0].Signals)
}

func TestUnchangedURLIsIgnored(t *testing.T) {
	o, rec, _ := start(t, 10*time.Millisecond, "https://jobs.example.com/a")

	o.Notify(SignalPoll, "https://jobs.example.com/a")
	o.Notify(SignalPoll, "")
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	o.Notify(SignalProgrammatic, "https://jobs.example.com/b")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	o.Notify(SignalPoll, "https://jobs.example.com/b")
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func TestNavigateAwayAndBackWithinWindow(t *testing.T) {
	o, rec, _ := start(t, 30*time.Millisecond, "https://jobs.example.com/a")

	o.Notify(SignalProgrammatic, "https://jobs.example.com/b")
	o.Notify(SignalHistory, "https://jobs.example.com/a")
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
}

func TestSeparateNavigationsFireSeparately(t *testing.T) {
	o, rec, _ := start(t, 10*time.Millisecond, "https://jobs.example.com/a")

	o.Notify(SignalProgrammatic, "https://jobs.example.com/b")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	o.Notify(SignalHistory, "https://jobs.example.com/a")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	events := rec.snapshot()
	assert.Equal(t, "https://jobs.example.com/b", events[0].URL)
	assert.Equal(t, "https://jobs.example.com/a", events[1].URL)
	assert.Equal(t, SignalHistory, events[1].Signal)
}

func TestRepeatedURLDoesNotPostponeHandler(t *testing.T) {
	o, rec, _ := start(t, 30*time.Millisecond, "https://jobs.example.com/a")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				o.Notify(SignalPoll, "https://jobs.example.com/b")
			}
		}
	}()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "https://jobs.example.com/b", rec.snapshot()[0].URL)
}

func TestRunStopsOnCancel(t *testing.T) {
	o := NewObserver(Config{}, func(context.Context, Event) {}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, o.Run(ctx, ""), context.Canceled)
}

func TestNotifyNeverBlocks(t *testing.T) {
	o := NewObserver(Config{Buffer: 1}, func(context.Context, Event) {}, nil)
	o.Notify(SignalPoll, "a")
	o.Notify(SignalPoll, "b")
	assert.Len(t, o.signals, 1)
}

func TestPollFeedsObserver(t *testing.T) {
	o, rec, _ := start(t, 10*time.Millisecond, "https://jobs.example.com/a")

	urls := []string{"https://jobs.example.com/a", "", "https://jobs.example.com/c"}
	var mu sync.Mutex
	calls := 0
	next := func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		i := calls
		calls++
		if i == 1 {
			return "", errors.New("target closed")
		}
		if i >= len(urls) {
			i = len(urls) - 1
		}
		return urls[i], nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = o.Poll(ctx, 5*time.Millisecond, next) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	ev := rec.snapshot()[0]
	assert.Equal(t, "https://jobs.example.com/c", ev.URL)
	assert.Equal(t, SignalPoll, ev.Signal)
}

func TestPollRejectsBadInterval(t *testing.T) {
	o := NewObserver(Config{}, func(context.Context, Event) {}, nil)
	assert.Error(t, o.Poll(context.Background(), 0, nil))
}
