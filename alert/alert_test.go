package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, ev Event) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *captureNotifier) captured() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	capture := &captureNotifier{}
	d := NewDispatcher(capture, 16, nil)

	for i := 0; i < 5; i++ {
		d.Emit(Event{Kind: KindSuspiciousLogin, AccountID: "acct-1"})
	}
	d.Close()

	events := capture.captured()
	require.Len(t, events, 5)
	require.Equal(t, KindSuspiciousLogin, events[0].Kind)
	require.False(t, events[0].At.IsZero(), "dispatcher should stamp events")
	require.Zero(t, d.Dropped())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	capture := &captureNotifier{block: make(chan struct{})}
	d := NewDispatcher(capture, 2, nil)

	// One event occupies the notifier; the buffer takes two more.
	for i := 0; i < 10; i++ {
		d.Emit(Event{Kind: KindSuspiciousLogin})
	}

	require.Eventually(t, func() bool { return d.Dropped() > 0 }, time.Second, 10*time.Millisecond)

	close(capture.block)
	d.Close()
	require.LessOrEqual(t, len(capture.captured()), 3)
}

func TestDispatcherEmitAfterCloseIsNoOp(t *testing.T) {
	capture := &captureNotifier{}
	d := NewDispatcher(capture, 4, nil)
	d.Close()

	// Background emitters can outlive Close; a late event must be
	// discarded, never delivered, and never panic.
	require.NotPanics(t, func() {
		d.Emit(Event{Kind: KindSuspiciousLogin, AccountID: "acct-1"})
	})
	require.NotPanics(t, d.Close)
	require.Empty(t, capture.captured())
}

func TestDispatcherReportsNotifierErrors(t *testing.T) {
	capture := &captureNotifier{err: errors.New("broker down")}

	var got error
	var mu sync.Mutex
	d := NewDispatcher(capture, 4, func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	})

	d.Emit(Event{Kind: KindSuspiciousLogin})
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, got)
}
