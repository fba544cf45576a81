// Package alert delivers out-of-band security notifications. Delivery
// is fire-and-forget: the login path enqueues and moves on, and a full
// queue or a broker outage can never fail an authentication.
package alert

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one security notification.
type Event struct {
	Kind      string            `json:"kind"`
	AccountID string            `json:"accountId"`
	SessionID string            `json:"sessionId,omitempty"`
	RiskLevel string            `json:"riskLevel,omitempty"`
	Flags     []string          `json:"flags,omitempty"`
	IP        string            `json:"ip,omitempty"`
	At        time.Time         `json:"at"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Event kinds.
const (
	KindSuspiciousLogin = "suspicious_login"
	KindBackupCodesLow  = "backup_codes_low"
	KindPasswordChanged = "password_changed"
	KindSecondFactorOff = "second_factor_disabled"
)

// Notifier delivers a single event. Implementations may block; the
// dispatcher calls them from its own goroutine.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NoopNotifier discards events. Default when no broker is wired.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Event) error { return nil }

const (
	defaultBufferSize = 256
	notifyTimeout     = 5 * time.Second
)

// Dispatcher decouples event producers from the notifier with a bounded
// queue. When the queue is full the event is dropped and counted. The
// queue channel is never closed: producers may race Close, so intake is
// gated by a flag and Emit after Close is a no-op.
type Dispatcher struct {
	notifier Notifier
	queue    chan Event
	dropped  atomic.Uint64
	errFn    func(error)

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewDispatcher starts the delivery goroutine. errFn receives notifier
// failures; pass nil to ignore them.
func NewDispatcher(notifier Notifier, bufferSize int, errFn func(error)) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if errFn == nil {
		errFn = func(error) {}
	}
	d := &Dispatcher{
		notifier: notifier,
		queue:    make(chan Event, bufferSize),
		errFn:    errFn,
		done:     make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Emit enqueues without blocking. Events beyond the buffer are dropped,
// and events emitted after Close are discarded.
func (d *Dispatcher) Emit(ev Event) {
	if d.closed.Load() {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case d.queue <- ev:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded due to backpressure.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops intake and drains queued events before returning. Safe to
// call more than once and safe against concurrent Emit.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := d.notifier.Notify(ctx, ev); err != nil {
		d.errFn(err)
	}
}
