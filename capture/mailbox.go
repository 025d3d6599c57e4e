// Package capture hands frames from the capture goroutine to the frame loop.
package capture

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned once the mailbox has been closed and drained.
	ErrClosed = errors.New("mailbox closed")
	// ErrEmpty is returned by Take when no new value has arrived.
	ErrEmpty = errors.New("mailbox empty")
)

// Mailbox is a single-slot, overwrite-on-put hand-off between one producer
// and one consumer. Put always replaces an unconsumed value; Take swaps the
// slot out so a value is observed at most once.
type Mailbox[T any] struct {
	mu     sync.Mutex
	slot   T
	full   bool
	closed bool

	onDrop func(T)

	puts  atomic.Uint64
	drops atomic.Uint64
}

// NewMailbox returns an empty mailbox. onDrop, if non-nil, receives every
// value that is overwritten before being taken or that arrives after Close,
// so the owner can release it.
func NewMailbox[T any](onDrop func(T)) *Mailbox[T] {
	return &Mailbox[T]{onDrop: onDrop}
}

// Put stores v, evicting any unconsumed value.
func (m *Mailbox[T]) Put(v T) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.drop(v)
		return ErrClosed
	}

	old, replaced := m.slot, m.full
	m.slot, m.full = v, true
	m.mu.Unlock()

	m.puts.Add(1)
	if replaced {
		m.drops.Add(1)
		m.drop(old)
	}
	return nil
}

// Take removes and returns the newest value. It returns ErrEmpty when
// nothing new has been put and ErrClosed when closed with nothing pending.
func (m *Mailbox[T]) Take() (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if !m.full {
		if m.closed {
			return zero, ErrClosed
		}
		return zero, ErrEmpty
	}
	v := m.slot
	m.slot, m.full = zero, false
	return v, nil
}

// Close stops accepting values. A value already in the slot can still be taken.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Stats returns the number of values put and the number overwritten unconsumed.
func (m *Mailbox[T]) Stats() (puts, drops uint64) {
	return m.puts.Load(), m.drops.Load()
}

func (m *Mailbox[T]) drop(v T) {
	if m.onDrop != nil {
		m.onDrop(v)
	}
}
