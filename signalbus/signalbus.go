// Package signalbus implements the outbound multi-consumer broadcast sink
// (C4.7): a typed broadcast of signal.Signal values with bounded
// per-consumer history. Late subscribers see only signals emitted after
// they subscribe. A full or closed consumer channel is skipped and logged,
// never retried, matching spec.md section 4.7's no-stall guarantee.
//
// The subscriber bookkeeping (mutex-guarded slice, closed flag, fan-out
// loop) is grounded on pairstream.Publisher, generalized from a
// single-slot latest-value slot to a bounded FIFO channel per subscriber
// since broadcast history, unlike a BlockSnapshot feed, must not silently
// overwrite pending signals.
package signalbus

import (
	"sync"

	"github.com/veblen-group/kuma-core/signal"
)

// Logger is the narrow structured-logging contract shared across kuma-core.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Bus is the producer side of the outbound signal broadcast.
type Bus struct {
	mu       sync.Mutex
	subs     []chan signal.Signal
	closed   bool
	capacity int
}

// NewBus creates a Bus whose subscriber channels buffer up to capacity
// pending signals before a Publish is considered a skip.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{capacity: capacity}
}

// Subscribe registers a new consumer and returns its receive-only channel.
// The channel is closed when the Bus is closed. A subscription made after
// signals have already been published does not see them.
func (b *Bus) Subscribe() <-chan signal.Signal {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan signal.Signal, b.capacity)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish fans sig out to every current subscriber, never blocking. A
// subscriber whose buffer is full is skipped and logged; the scheduler does
// not retry and does not stall, per spec.md section 4.7.
func (b *Bus) Publish(sig signal.Signal, logger Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		if logger != nil {
			logger.Warn("signalbus: publish on closed bus, dropping", "signal", sig.String())
		}
		return
	}

	if len(b.subs) == 0 {
		if logger != nil {
			logger.Debug("signalbus: no subscribers, dropping signal", "signal", sig.String())
		}
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- sig:
		default:
			if logger != nil {
				logger.Warn("signalbus: subscriber buffer full, dropping signal", "signal", sig.String())
			}
		}
	}
}

// Close ends every outstanding subscription. Safe to call once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
}
