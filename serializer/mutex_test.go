package serializer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainMutexGrantsImmediatelyWhenFree(t *testing.T) {
	var m mainMutex
	require.True(t, m.lock(func() { t.Fatal("should not be queued") }))
}

func TestMainMutexQueuesSecondWaiter(t *testing.T) {
	var m mainMutex
	require.True(t, m.lock(func() {}))

	called := false
	require.False(t, m.lock(func() { called = true }))
	require.False(t, called, "queued waiter must not run until unlock")

	m.unlock()
	require.True(t, called, "unlock hands off directly to the next waiter")
}

func TestMainMutexUnlockWithNoWaitersFreesIt(t *testing.T) {
	var m mainMutex
	m.lock(func() {})
	m.unlock()
	require.True(t, m.lock(func() { t.Fatal("should not be queued") }))
}

func TestMainMutexUnlockOfUnheldPanics(t *testing.T) {
	var m mainMutex
	require.Panics(t, func() { m.unlock() })
}

func TestMainMutexGrantsInFIFOOrder(t *testing.T) {
	var m mainMutex
	m.lock(func() {})

	var order []int
	m.lock(func() { order = append(order, 1) })
	m.lock(func() { order = append(order, 2) })

	m.unlock() // hands off to waiter 1, mutex stays held
	m.unlock() // hands off to waiter 2
	require.Equal(t, []int{1, 2}, order)
}
