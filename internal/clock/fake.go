package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Tickers created from it fire only when
// Advance moves the clock past their deadline.
//
// Thread-safety: all methods are safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeTicker
}

// NewFake creates a Fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	return f.add(d, d)
}

func (f *Fake) NewTimer(d time.Duration) Ticker {
	if d < 0 {
		d = 0
	}
	return f.add(d, 0)
}

func (f *Fake) add(first, period time.Duration) *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{
		clock:  f,
		ch:     make(chan time.Time, 1),
		next:   f.now.Add(first),
		period: period,
	}
	f.waiters = append(f.waiters, t)
	return t
}

// Advance moves the clock forward by d, delivering every tick whose deadline
// falls inside the window. Like time.Ticker, a tick is dropped when the
// receiver has not drained the previous one.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		t := f.nextDue(target)
		if t == nil {
			break
		}
		f.now = t.next
		select {
		case t.ch <- t.next:
		default:
		}
		if t.period > 0 {
			t.next = t.next.Add(t.period)
		} else {
			t.stopped = true
		}
	}
	f.now = target
	f.prune()
	f.mu.Unlock()
}

// Waiters reports how many tickers and timers are still armed.
func (f *Fake) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prune()
	return len(f.waiters)
}

func (f *Fake) nextDue(target time.Time) *fakeTicker {
	var due []*fakeTicker
	for _, t := range f.waiters {
		if !t.stopped && !t.next.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].next.Before(due[j].next) })
	return due[0]
}

func (f *Fake) prune() {
	live := f.waiters[:0]
	for _, t := range f.waiters {
		if !t.stopped {
			live = append(live, t)
		}
	}
	f.waiters = live
}

type fakeTicker struct {
	clock   *Fake
	ch      chan time.Time
	next    time.Time
	period  time.Duration
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}
