package serializer

// mainMutex is a non-blocking-acquire mutex: lock either grants
// immediately and returns true, or queues onAvailable and returns
// false, to be invoked later from inside unlock once the mutex comes
// free. Grants are handed to waiters in arrival order.
//
// In this harness the Manager's own GC state machine is the only
// caller that ever contends on it (nothing else in package blockmgr
// calls LockMainMutex), so in practice lock almost always grants
// synchronously; the queueing path exists for embedders that introduce
// a second lock holder of their own.
type mainMutex struct {
	held    bool
	waiters []func()
}

func (m *mainMutex) lock(onAvailable func()) bool {
	if !m.held {
		m.held = true
		return true
	}
	m.waiters = append(m.waiters, onAvailable)
	return false
}

func (m *mainMutex) unlock() {
	if !m.held {
		panic("serializer: unlock of unheld main mutex")
	}
	if len(m.waiters) == 0 {
		m.held = false
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	// held stays true: the mutex passes directly to the next waiter.
	next()
}
