package utils

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Sleep(d time.Duration)
}

type RealClock struct{}

func (self RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (self RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (self RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is settable by tests. After() fires immediately so timer
// driven code can be stepped deterministically.
type MockClock struct {
	mu       sync.Mutex
	now_time time.Time
}

func NewMockClock(now time.Time) *MockClock {
	return &MockClock{now_time: now}
}

func (self *MockClock) Now() time.Time {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.now_time
}

func (self *MockClock) Set(t time.Time) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.now_time = t
}

func (self *MockClock) Advance(d time.Duration) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.now_time = self.now_time.Add(d)
}

func (self *MockClock) After(d time.Duration) <-chan time.Time {
	c := make(chan time.Time, 1)
	c <- self.Now().Add(d)
	return c
}

func (self *MockClock) Sleep(d time.Duration) {
	self.Advance(d)
}
