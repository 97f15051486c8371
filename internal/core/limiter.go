package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Runs reconcile by natural key, so two runs writing the same customers or
// invoices at once could both decide to insert. One slot serialises them.
const (
	DefaultMaxConcurrentImports = 1
	DefaultMaxWaitTime          = 30 * time.Second
)

// ErrTooManyImports means no run slot freed up within the limiter's wait.
var ErrTooManyImports = errors.New("too many imports in progress, please try again later")

// ImportLimiter admits at most a fixed number of concurrent import runs.
// Every successful Acquire or TryAcquire must be paired with one Release.
type ImportLimiter struct {
	sem     *semaphore.Weighted
	slots   int
	maxWait time.Duration

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewImportLimiter falls back to the package defaults for non-positive
// arguments.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	idle := make(chan struct{})
	close(idle)
	return &ImportLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		slots:   maxConcurrent,
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire waits up to the limiter's maxWait for a slot. A cancelled ctx
// returns its own error; an expired wait returns ErrTooManyImports.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}
	l.enter()
	return nil
}

// TryAcquire takes a slot only if one is free right now.
func (l *ImportLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.enter()
	return true
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *ImportLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()
	l.sem.Release(1)
}

func (l *ImportLimiter) enter() {
	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
}

func (l *ImportLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *ImportLimiter) MaxConcurrent() int { return l.slots }

func (l *ImportLimiter) Available() int { return l.slots - l.ActiveCount() }

// WaitForDrain blocks until no run holds a slot or ctx is done.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	for {
		l.mu.Lock()
		idle, active := l.idle, l.active
		l.mu.Unlock()
		if active == 0 {
			return nil
		}

		select {
		case <-idle:
			// A new run may have started after the close; look again.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// LimiterStatus is reported by the health endpoint and at shutdown.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *ImportLimiter) Status() LimiterStatus {
	active := l.ActiveCount()
	return LimiterStatus{
		Active:        active,
		Available:     l.slots - active,
		MaxConcurrent: l.slots,
	}
}
