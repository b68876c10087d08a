// Package mailbox hands values from producer goroutines to the control
// goroutine without blocking either side.
package mailbox

import "sync/atomic"

// Mailbox is a single-slot, latest-value-wins handoff. Put overwrites any
// value not yet taken; Take empties the slot. Neither call blocks or locks.
type Mailbox[T any] struct {
	slot    atomic.Pointer[T]
	dropped atomic.Uint64
}

func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{}
}

// Put publishes v, replacing an unread value.
func (m *Mailbox[T]) Put(v T) {
	if old := m.slot.Swap(&v); old != nil {
		m.dropped.Add(1)
	}
}

// Take returns the pending value if there is one. An empty slot means no
// update this tick.
func (m *Mailbox[T]) Take() (T, bool) {
	p := m.slot.Swap(nil)
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Pending reports whether a value is waiting.
func (m *Mailbox[T]) Pending() bool {
	return m.slot.Load() != nil
}

// Dropped counts values overwritten before being taken.
func (m *Mailbox[T]) Dropped() uint64 {
	return m.dropped.Load()
}

// Flag is a one-shot request consumed at the next tick boundary.
type Flag struct {
	set atomic.Bool
}

func (f *Flag) Raise() {
	f.set.Store(true)
}

// Consume reports whether the flag was raised and clears it.
func (f *Flag) Consume() bool {
	return f.set.Swap(false)
}
