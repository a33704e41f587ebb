package service

import (
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/model"
)

// fakeClock fires timers only from Advance, on the calling goroutine
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	done    bool
	stopped bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that became due
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && !t.stopped && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type recordedEvent struct {
	Room    string
	Event   string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(room, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Room: room, Event: event, Payload: payload})
}

// names returns the event names delivered to room, in order
func (p *recordingPublisher) names(room string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var names []string
	for _, e := range p.events {
		if e.Room == room {
			names = append(names, e.Event)
		}
	}
	return names
}

// last returns the most recent payload of event in room
func (p *recordingPublisher) last(room, event string) (model.TransactionEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.events) - 1; i >= 0; i-- {
		e := p.events[i]
		if e.Room == room && e.Event == event {
			payload, ok := e.Payload.(model.TransactionEvent)
			return payload, ok
		}
	}
	return model.TransactionEvent{}, false
}

func (p *recordingPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.events {
		if e.Event == event {
			n++
		}
	}
	return n
}
