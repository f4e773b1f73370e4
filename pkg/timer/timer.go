package timer

import (
	"context"
	"sync"
	"time"
)

// Timer for mocking time
type Timer interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realTimer struct {
}

// New returns the wall clock timer
func New() Timer {
	return realTimer{}
}

func (realTimer) Now() time.Time {
	return time.Now().UTC()
}

func (realTimer) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fake is a manually advanced timer, Sleep moves the clock forward immediately
type Fake struct {
	mut        sync.Mutex
	current    time.Time
	sleepCalls []time.Duration
}

var _ Timer = &Fake{}

// NewFake ...
func NewFake(start time.Time) *Fake {
	return &Fake{current: start}
}

// Now ...
func (f *Fake) Now() time.Time {
	f.mut.Lock()
	defer f.mut.Unlock()
	return f.current
}

// Sleep ...
func (f *Fake) Sleep(_ context.Context, d time.Duration) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.sleepCalls = append(f.sleepCalls, d)
	f.current = f.current.Add(d)
	return nil
}

// Set ...
func (f *Fake) Set(t time.Time) {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.current = t
}

// Advance ...
func (f *Fake) Advance(d time.Duration) {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.current = f.current.Add(d)
}

// SleepCalls ...
func (f *Fake) SleepCalls() []time.Duration {
	f.mut.Lock()
	defer f.mut.Unlock()
	return append([]time.Duration(nil), f.sleepCalls...)
}
