package generation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Controller hands out attempt tokens and makes sure only the newest attempt
// is live. A zero Controller is ready to use.
type Controller struct {
	mu      sync.Mutex
	token   uint64
	current *Attempt
}

// Attempt is one run's cancellation scope and deadline.
type Attempt struct {
	Token   uint64
	Started time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu    sync.Mutex
	timer *time.Timer
	done  bool
}

// NewAttempt cancels the live attempt, if any, with ErrSuperseded and
// starts a new one derived from parent.
func (c *Controller) NewAttempt(parent context.Context) *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.cancel(ErrSuperseded)
	}
	c.token++

	ctx, cancel := context.WithCancelCause(parent)
	a := &Attempt{
		Token:   c.token,
		Started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.current = a
	return a
}

// IsCurrent reports whether token belongs to the newest attempt.
func (c *Controller) IsCurrent(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return token == c.token
}

// Token returns the newest attempt token (0 before the first attempt).
func (c *Controller) Token() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Cancel aborts the live attempt with ErrCancelled. It reports whether an
// attempt was still running.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	a := c.current
	c.mu.Unlock()

	if a == nil || a.ctx.Err() != nil {
		return false
	}
	a.cancel(ErrCancelled)
	return true
}

// Context is cancelled when the attempt is superseded, cancelled, past its
// deadline, or finished.
func (a *Attempt) Context() context.Context {
	return a.ctx
}

// StartDeadline arms the whole-run deadline. Expiry cancels the attempt
// with ErrDeadlineExceeded. Calling it after Done is a no-op.
func (a *Attempt) StartDeadline(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done || d <= 0 {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(d, func() {
		a.cancel(ErrDeadlineExceeded)
	})
}

// Done stops the deadline and releases the attempt context. A timer that
// fires afterwards finds the context already cancelled and changes nothing.
func (a *Attempt) Done() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return
	}
	a.done = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.cancel(nil)
}

// Elapsed returns the time since the attempt started.
func (a *Attempt) Elapsed() time.Duration {
	return time.Since(a.Started)
}

// Err returns the cancellation cause, or nil while the attempt is live.
func (a *Attempt) Err() error {
	if a.ctx.Err() == nil {
		return nil
	}
	return context.Cause(a.ctx)
}

// Aborted reports whether the attempt was superseded or cancelled, as
// opposed to timed out.
func (a *Attempt) Aborted() bool {
	err := a.Err()
	return err != nil && !errors.Is(err, ErrDeadlineExceeded)
}

// await runs fn in its own goroutine and waits for it or for the attempt to
// end. fn is not started once the attempt has ended, and a result that
// arrives after the attempt ended is discarded.
func await[T any](a *Attempt, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := a.Err(); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(a.ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		if err := a.Err(); err != nil {
			return zero, err
		}
		return r.v, r.err
	case <-a.ctx.Done():
		return zero, context.Cause(a.ctx)
	}
}
