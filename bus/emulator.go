// Package bus implements the KIM-1 host bus responder: on every
// host clock cycle it resolves a read or a write against the cell store and,
// for cycles touching one of the floppy controller's aliased registers,
// publishes an event for the controller context to consume.
package bus

import (
	"context"
	"sync"

	"github.com/kim1fw/memcard/cell"
)

// Direction distinguishes a host read from a host write on an aliased
// register.
type Direction int

const (
	DirRead Direction = iota
	DirWrite
)

// AliasEvent is published whenever the host accesses HSR, DAR, MSR or UDR.
type AliasEvent struct {
	Register string
	Addr     uint16
	Dir      Direction
	Value    byte
}

// Emulator is the bus lane between the host CPU and the cell store. It
// holds no state of its
// own beyond the alias event plumbing; the cell store is the single source
// of truth for every cycle.
type Emulator struct {
	store *cell.Store

	// Notify is the binary (single-slot) signal the controller context
	// blocks on between alias events: a capacity-1 channel rather than a
	// semaphore, so waking the consumer never requires a matching prior
	// acquire (spec §9 allows "a channel of fixed capacity or an async
	// notifier" in place of the source firmware's binary semaphore).
	Notify chan struct{}

	mu     sync.Mutex
	events map[uint16]chan AliasEvent
}

// NewEmulator wires an Emulator against store. The caller (fdc.Controller)
// registers its aliased register addresses with RegisterAlias before
// running the bus.
func NewEmulator(store *cell.Store) *Emulator {
	return &Emulator{
		store:  store,
		Notify: make(chan struct{}, 1),
		events: make(map[uint16]chan AliasEvent),
	}
}

// RegisterAlias gives addr a capacity-1 event channel and a label; it must
// be called before any Cycle touches addr.
func (e *Emulator) RegisterAlias(addr uint16, label string) <-chan AliasEvent {
	e.store.MapAlias(addr, label)

	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan AliasEvent, 1)
	e.events[addr] = ch

	return ch
}

// Cycle services one host clock cycle. For a read, it drives the bus with
// the cell's data byte if the cell is enabled; for a write, it latches the
// byte if the cell is enabled and writeable. Either way, if addr is an
// aliased register, an AliasEvent is published and the consumer is woken.
// A read completes synchronously, and a write to a disabled or ROM cell is
// a no-op beyond a possible alias event. Cycle stores a write to HSR as
// given, bits 7:6 included; WriteHSR is the call that masks those bits to
// the controller-maintained values, and the controller makes it when it
// services the resulting HSR event.
func (e *Emulator) Cycle(addr uint16, write bool, data byte) (out byte, driven bool) {
	if write {
		e.store.WriteByte(addr, data)
	} else {
		out, driven, _ = e.store.ReadByte(addr)
	}

	if label, ok := e.store.AliasAt(addr); ok {
		dir := DirRead
		val := out
		if write {
			dir = DirWrite
			val = data
		}
		e.publish(addr, AliasEvent{Register: label, Addr: addr, Dir: dir, Value: val})
	}

	return out, driven
}

// publish implements the "newest event replaces oldest" single-slot channel
// discipline: a non-blocking send, draining the stale event on contention.
func (e *Emulator) publish(addr uint16, ev AliasEvent) {
	e.mu.Lock()
	ch, ok := e.events[addr]
	e.mu.Unlock()

	if !ok {
		return
	}

	for {
		select {
		case ch <- ev:
			e.wake()
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// wake signals Notify without blocking: if the consumer hasn't drained the
// previous wakeup yet, this is a no-op, since drain() always services every
// register's channel on each wakeup regardless of how many arrived.
func (e *Emulator) wake() {
	select {
	case e.Notify <- struct{}{}:
	default:
	}
}

// WriteHSR performs a host write to the HSR alias, masking bits 7 and 6
// (IRQREQ and the option switch, both read-only from the host) back to the
// controller-maintained bits before the write lands.
func (e *Emulator) WriteHSR(addr uint16, data byte, controllerBits byte) {
	masked := (data & 0x3F) | (controllerBits & 0xC0)
	e.Cycle(addr, true, masked)
}

// AcquireEvent blocks the controller context until an alias event has been
// published, honoring ctx cancellation.
func (e *Emulator) AcquireEvent(ctx context.Context) error {
	select {
	case <-e.Notify:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
