package broadcast

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsTasks(t *testing.T) {
	d := NewDispatcher(2, 8, nil)

	var ran atomic.Int32
	for range 5 {
		require.NoError(t, d.Submit(func() { ran.Add(1) }))
	}
	d.Stop()

	assert.Equal(t, int32(5), ran.Load())
	assert.Zero(t, d.Dropped())
}

func TestDispatcher_DropsOldestWhenFull(t *testing.T) {
	var drops atomic.Int32
	d := NewDispatcher(1, 2, func() { drops.Add(1) })

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	var order []int
	record := func(n int) func() {
		return func() { order = append(order, n) }
	}
	for i := 1; i <= 4; i++ {
		require.NoError(t, d.Submit(record(i)))
	}

	close(release)
	d.Stop()

	assert.Equal(t, []int{3, 4}, order)
	assert.Equal(t, int64(2), d.Dropped())
	assert.Equal(t, int32(2), drops.Load())
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	d := NewDispatcher(1, 4, nil)

	done := make(chan struct{})
	require.NoError(t, d.Submit(func() { panic("boom") }))
	require.NoError(t, d.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}
	d.Stop()
}

func TestDispatcher_SubmitAfterStop(t *testing.T) {
	d := NewDispatcher(1, 1, nil)
	d.Stop()
	d.Stop()

	assert.ErrorIs(t, d.Submit(func() {}), ErrHubStopped)
}
