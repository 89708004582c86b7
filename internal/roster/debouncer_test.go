package roster

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestDebouncerFiresOnceAfterQuietPeriod(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	var fired atomic.Int32
	d := NewDebouncer(clk, 900*time.Millisecond, func() { fired.Add(1) })

	d.Trigger()
	clk.Step(600 * time.Millisecond)
	d.Trigger()
	clk.Step(600 * time.Millisecond)
	assert.True(t, d.Armed())

	clk.Step(300 * time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return fired.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.False(t, d.Armed())
}

func TestDebouncerCancelAndStop(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	var fired atomic.Int32
	d := NewDebouncer(clk, time.Second, func() { fired.Add(1) })

	d.Trigger()
	d.Cancel()
	clk.Step(2 * time.Second)

	d.Stop()
	d.Trigger()
	assert.False(t, d.Armed())
	clk.Step(2 * time.Second)

	assert.Never(t, func() bool { return fired.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}
