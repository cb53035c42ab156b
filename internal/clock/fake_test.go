package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeTickerFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)
	tk := c.NewTicker(time.Hour)

	c.Advance(30 * time.Minute)
	select {
	case <-tk.C():
		t.Fatal("ticker fired before its period elapsed")
	default:
	}

	c.Advance(30 * time.Minute)
	select {
	case got := <-tk.C():
		assert.Equal(t, start.Add(time.Hour), got)
	default:
		t.Fatal("expected a tick after one period")
	}
	assert.Equal(t, start.Add(time.Hour), c.Now())
}

func TestFakeTickerDropsUndrainedTicks(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	tk := c.NewTicker(time.Minute)

	c.Advance(5 * time.Minute)
	<-tk.C()
	select {
	case <-tk.C():
		t.Fatal("only one tick should be buffered")
	default:
	}
}

func TestFakeTimerFiresOnceAndStops(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	tm := c.NewTimer(time.Minute)
	assert.Equal(t, 1, c.Waiters())

	c.Advance(10 * time.Minute)
	<-tm.C()
	assert.Equal(t, 0, c.Waiters())
}

func TestFakeStoppedTickerNeverFires(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	tk := c.NewTicker(time.Minute)
	tk.Stop()

	c.Advance(time.Hour)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}
