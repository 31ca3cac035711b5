package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_Ticks(t *testing.T) {
	clk := clock.NewMock()
	s := New(clk)

	ticks := make(chan struct{}, 10)
	require.NoError(t, s.Start(time.Second, func() { ticks <- struct{}{} }))
	defer s.Stop()

	for i := 0; i < 3; i++ {
		clk.Add(time.Second)
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatalf("tick %d not delivered", i)
		}
	}
}

func TestScheduler_NoTickBeforePeriod(t *testing.T) {
	clk := clock.NewMock()
	s := New(clk)

	var n atomic.Int32
	require.NoError(t, s.Start(time.Second, func() { n.Add(1) }))
	clk.Add(500 * time.Millisecond)
	s.Stop()

	assert.Zero(t, n.Load())
}

func TestScheduler_StartTwice(t *testing.T) {
	s := New(clock.NewMock())
	require.NoError(t, s.Start(time.Second, func() {}))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(time.Second, func() {}), ErrRunning)
	assert.True(t, s.Running())
}

func TestScheduler_InvalidPeriod(t *testing.T) {
	s := New(clock.NewMock())
	assert.Error(t, s.Start(0, func() {}))
	assert.False(t, s.Running())
}

func TestScheduler_StopIsIdempotentAndRestartable(t *testing.T) {
	clk := clock.NewMock()
	s := New(clk)
	s.Stop()

	require.NoError(t, s.Start(time.Second, func() {}))
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	ticks := make(chan struct{}, 1)
	require.NoError(t, s.Start(time.Second, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}))
	defer s.Stop()
	clk.Add(time.Second)
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("restarted scheduler did not tick")
	}
}

func TestScheduler_NoOverlap(t *testing.T) {
	clk := clock.NewMock()
	s := New(clk)

	var inFlight, maxInFlight atomic.Int32
	release := make(chan struct{})
	entered := make(chan struct{}, 10)
	require.NoError(t, s.Start(time.Second, func() {
		cur := inFlight.Add(1)
		if cur > maxInFlight.Load() {
			maxInFlight.Store(cur)
		}
		entered <- struct{}{}
		<-release
		inFlight.Add(-1)
	}))

	clk.Add(time.Second)
	<-entered
	// Further ticks while the first callback blocks
	clk.Add(time.Second)
	clk.Add(time.Second)
	close(release)
	s.Stop()

	assert.Equal(t, int32(1), maxInFlight.Load())
}
