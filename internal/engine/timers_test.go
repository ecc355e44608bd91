package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectFires() (chan TimerFire, func(TimerFire)) {
	ch := make(chan TimerFire, 8)
	return ch, func(f TimerFire) { ch <- f }
}

func TestTimerFiresWithScheduledSeq(t *testing.T) {
	fires, fn := collectFires()
	c := NewTimerController(fn)

	c.SchedulePoke("G1", 5*time.Millisecond, 7)

	select {
	case f := <-fires:
		assert.Equal(t, "G1", f.SessionID)
		assert.Equal(t, TimerPoke, f.Kind)
		assert.Equal(t, uint64(7), f.Seq)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestTimerRescheduleReplaces(t *testing.T) {
	fires, fn := collectFires()
	c := NewTimerController(fn)

	c.ScheduleForfeit("G1", 50*time.Millisecond, 1)
	c.ScheduleForfeit("G1", 5*time.Millisecond, 2)

	f := <-fires
	require.Equal(t, uint64(2), f.Seq)

	// the replaced timer must not fire as well
	select {
	case f := <-fires:
		t.Fatalf("stale timer fired: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTimerCancelAll(t *testing.T) {
	fires, fn := collectFires()
	c := NewTimerController(fn)

	c.SchedulePoke("G1", 10*time.Millisecond, 1)
	c.ScheduleForfeit("G1", 10*time.Millisecond, 1)
	c.CancelAll("G1")

	select {
	case f := <-fires:
		t.Fatalf("cancelled timer fired: %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerKindsIndependent(t *testing.T) {
	fires, fn := collectFires()
	c := NewTimerController(fn)

	c.SchedulePoke("G1", 5*time.Millisecond, 1)
	c.ScheduleForfeit("G1", 10*time.Millisecond, 1)

	kinds := map[TimerKind]bool{}
	for i := 0; i < 2; i++ {
		select {
		case f := <-fires:
			kinds[f.Kind] = true
		case <-time.After(time.Second):
			t.Fatal("missing fire")
		}
	}
	assert.True(t, kinds[TimerPoke])
	assert.True(t, kinds[TimerForfeit])
}
