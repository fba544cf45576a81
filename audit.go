package authcore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AuditEvent is one authentication decision. Events carry outcomes and
// normalized failure reasons; secrets and codes never appear in them.
type AuditEvent struct {
	Name      string
	AccountID string
	SessionID string
	IP        string
	Success   bool
	Reason    string
	At        time.Time
}

// AuditSink receives audit events from the dispatcher goroutine. Write
// must not panic; a slow sink only delays the audit queue, never a
// login.
type AuditSink interface {
	Write(ev AuditEvent)
}

// LogSink writes audit events as structured log lines.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Write(ev AuditEvent) {
	evt := s.log.Info()
	if !ev.Success {
		evt = s.log.Warn()
	}
	evt.Str("event", ev.Name).
		Str("account_id", ev.AccountID).
		Str("session_id", ev.SessionID).
		Str("ip", ev.IP).
		Bool("success", ev.Success).
		Str("reason", ev.Reason).
		Time("at", ev.At).
		Msg("audit")
}

// auditDispatcher fans events to the sink from a bounded queue so the
// hot path never blocks on audit IO. Overflow is dropped and counted.
// The queue channel is never closed; background emitters can race
// close, so intake is gated by a flag and emit after close is a no-op.
type auditDispatcher struct {
	sink    AuditSink
	queue   chan AuditEvent
	dropped atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func newAuditDispatcher(sink AuditSink, bufferSize int) *auditDispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	d := &auditDispatcher{
		sink:  sink,
		queue: make(chan AuditEvent, bufferSize),
		done:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *auditDispatcher) emit(ev AuditEvent) {
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

func (d *auditDispatcher) droppedCount() uint64 {
	return d.dropped.Load()
}

func (d *auditDispatcher) close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Write(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.queue:
					d.sink.Write(ev)
				default:
					return
				}
			}
		}
	}
}
