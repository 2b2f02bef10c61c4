// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

// MonitorSlot is the monitor word of an object, typically embedded in it.
// A Monitor is attached to the slot by the owning MonitorPool on first use,
// and detached once no thread is using it. The zero value is an empty slot.
//
// A MonitorSlot must not be copied after first use, and must only be used
// with a single MonitorPool.
type MonitorSlot struct {
	// guarded by MonitorPool.mu
	monitor *Monitor
}

// Monitor returns the attached monitor, or nil, for diagnostics.
func (x *MonitorSlot) Monitor(pool *MonitorPool, t *Thread) *Monitor {
	pool.mu.Lock(t)
	defer pool.mu.Unlock(t)
	return x.monitor
}

// MonitorPool attaches monitors to MonitorSlot values lazily, recycling them
// through a per-thread free list, overflowing into a shared free list.
//
// A monitor stays attached while any thread owns, is entering, or is waiting
// on it. Instances must be obtained via Runtime.Monitors.
type MonitorPool struct {
	rt  *Runtime
	mu  Mutex
	min int
	max int

	// guarded by mu
	free      []*Monitor
	attached  int
	allocated int
}

// MonitorPoolStats is a snapshot of the state of a MonitorPool.
type MonitorPoolStats struct {
	// Attached is the number of slots with an attached monitor.
	Attached int
	// Free is the number of monitors on the shared free list.
	Free int
	// Allocated is the total number of monitors created by the pool.
	Allocated int
}

func newMonitorPool(rt *Runtime, min, max int) *MonitorPool {
	return &MonitorPool{rt: rt, min: min, max: max}
}

// Stats returns a snapshot of the pool.
func (x *MonitorPool) Stats(t *Thread) MonitorPoolStats {
	x.mu.Lock(t)
	defer x.mu.Unlock(t)
	return MonitorPoolStats{
		Attached:  x.attached,
		Free:      len(x.free),
		Allocated: x.allocated,
	}
}

// Enter is Monitor.Enter, for the monitor of slot.
func (x *MonitorPool) Enter(t *Thread, slot *MonitorSlot) error {
	return x.enter(t, slot, func(m *Monitor) error { return m.Enter(t) })
}

// TryEnter is Monitor.TryEnter, for the monitor of slot.
func (x *MonitorPool) TryEnter(t *Thread, slot *MonitorSlot) error {
	return x.enter(t, slot, func(m *Monitor) error { return m.TryEnter(t) })
}

// TimedTryEnter is Monitor.TimedTryEnter, for the monitor of slot.
func (x *MonitorPool) TimedTryEnter(t *Thread, slot *MonitorSlot, ms Timeout) error {
	if !ms.Valid() {
		return ErrInvalidTimeout
	}
	return x.enter(t, slot, func(m *Monitor) error { return m.TimedTryEnter(t, ms) })
}

func (x *MonitorPool) enter(t *Thread, slot *MonitorSlot, fn func(m *Monitor) error) error {
	x.mu.Lock(t)
	m := slot.monitor
	reentrant := m != nil && m.owns(t)
	if !reentrant {
		if m == nil {
			m = x.attachLocked(t, slot)
		}
		m.users++
	}
	x.mu.Unlock(t)

	err := fn(m)
	if err != nil && !reentrant {
		x.mu.Lock(t)
		x.unuseLocked(t, m)
		x.mu.Unlock(t)
	}
	return err
}

// Exit is Monitor.Exit, for the monitor of slot. The monitor is detached
// from the slot once the last thread using it has exited.
func (x *MonitorPool) Exit(t *Thread, slot *MonitorSlot) error {
	m, err := x.lookup(t, slot, `exit`)
	if err != nil {
		return err
	}
	if err := m.Exit(t); err != nil {
		return err
	}
	if m.owns(t) {
		return nil
	}
	x.mu.Lock(t)
	x.unuseLocked(t, m)
	x.mu.Unlock(t)
	return nil
}

// Wait is Monitor.Wait, for the monitor of slot.
func (x *MonitorPool) Wait(t *Thread, slot *MonitorSlot, ms Timeout) error {
	m, err := x.lookup(t, slot, `wait`)
	if err != nil {
		return err
	}
	return m.Wait(t, ms)
}

// Pulse is Monitor.Pulse, for the monitor of slot.
func (x *MonitorPool) Pulse(t *Thread, slot *MonitorSlot) error {
	m, err := x.lookup(t, slot, `pulse`)
	if err != nil {
		return err
	}
	return m.Pulse(t)
}

// PulseAll is Monitor.PulseAll, for the monitor of slot.
func (x *MonitorPool) PulseAll(t *Thread, slot *MonitorSlot) error {
	m, err := x.lookup(t, slot, `pulse_all`)
	if err != nil {
		return err
	}
	return m.PulseAll(t)
}

// Reclaim detaches the monitor of slot, moving it to the shared free list,
// if no thread is using it. A monitor abandoned by a thread that stopped
// while owning it is reset, then detached, provided no other thread is
// blocked on it. It reports whether the slot is now empty.
func (x *MonitorPool) Reclaim(t *Thread, slot *MonitorSlot) bool {
	x.mu.Lock(t)
	defer x.mu.Unlock(t)

	m := slot.monitor
	if m == nil {
		return true
	}

	if owner := m.owner.Load(); owner != nil {
		if !owner.State().Has(Stopped) ||
			m.entry.Waiters() != 0 ||
			m.waiters.Waiters() != 0 {
			return false
		}
		x.rt.logger.Debug().
			Int64(`owner`, owner.id).
			Log(`reclaiming abandoned monitor`)
		m.release()
		m.users = 0
	} else if m.users != 0 {
		return false
	}

	x.detachLocked(slot)
	x.free = append(x.free, m)

	return true
}

func (x *MonitorPool) lookup(t *Thread, slot *MonitorSlot, op string) (*Monitor, error) {
	x.mu.Lock(t)
	m := slot.monitor
	x.mu.Unlock(t)
	if m == nil {
		if b := x.rt.diag.warning(`monitor_slot_empty`, op); b != nil {
			b.Str(`op`, op).
				Int64(`thread`, t.id).
				Log(`monitor operation on object without monitor`)
		}
		return nil, ErrSyncLock
	}
	return m, nil
}

// attachLocked takes a monitor from the free lists, or allocates one.
func (x *MonitorPool) attachLocked(t *Thread, slot *MonitorSlot) *Monitor {
	var m *Monitor
	switch {
	case len(t.freeMonitors) != 0:
		m = t.freeMonitors[len(t.freeMonitors)-1]
		t.freeMonitors[len(t.freeMonitors)-1] = nil
		t.freeMonitors = t.freeMonitors[:len(t.freeMonitors)-1]
	case len(x.free) != 0:
		m = x.free[len(x.free)-1]
		x.free[len(x.free)-1] = nil
		x.free = x.free[:len(x.free)-1]
	default:
		m = NewMonitor()
		x.allocated++
	}
	m.slot = slot
	slot.monitor = m
	x.attached++
	return m
}

func (x *MonitorPool) detachLocked(slot *MonitorSlot) {
	slot.monitor.slot = nil
	slot.monitor = nil
	x.attached--
}

// unuseLocked drops a user of m, detaching it on the last, returning it to
// the free list of t.
func (x *MonitorPool) unuseLocked(t *Thread, m *Monitor) {
	m.users--
	if m.users != 0 || m.slot == nil {
		return
	}
	x.detachLocked(m.slot)
	t.freeMonitors = append(t.freeMonitors, m)
	if len(t.freeMonitors) > x.max {
		n := len(t.freeMonitors) - x.min
		x.free = append(x.free, t.freeMonitors[:n]...)
		t.freeMonitors = append([]*Monitor(nil), t.freeMonitors[n:]...)
	}
}

// releaseThread moves the free list of an exiting thread to the shared
// free list.
func (x *MonitorPool) releaseThread(t *Thread) {
	x.mu.Lock(t)
	defer x.mu.Unlock(t)
	x.free = append(x.free, t.freeMonitors...)
	t.freeMonitors = nil
}
