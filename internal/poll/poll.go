// File: internal/poll/poll.go

// Package poll implements the bounded polling loop every wait is built on.
// A check reports one of three outcomes per attempt: Ready ends the loop,
// NotYet schedules another attempt, Fatal ends the loop with an error. The
// loop itself decides when time has run out.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/observability"
)

type state int

const (
	stateReady state = iota + 1
	stateNotYet
	stateFatal
)

// Outcome is the result of one check attempt.
type Outcome struct {
	state state
	err   error
}

// Ready reports the condition is satisfied.
func Ready() Outcome { return Outcome{state: stateReady} }

// NotYet reports the condition is not satisfied yet. reason is kept as the
// last known cause and may be nil.
func NotYet(reason error) Outcome { return Outcome{state: stateNotYet, err: reason} }

// Fatal stops polling with err.
func Fatal(err error) Outcome { return Outcome{state: stateFatal, err: err} }

// Classify turns a check error into an Outcome: transient browser errors
// mean NotYet, anything else is Fatal.
func Classify(err error) Outcome {
	if err == nil {
		return Ready()
	}
	if browser.IsTransient(err) {
		return NotYet(err)
	}
	return Fatal(err)
}

func (o Outcome) IsReady() bool  { return o.state == stateReady }
func (o Outcome) IsNotYet() bool { return o.state == stateNotYet }
func (o Outcome) IsFatal() bool  { return o.state == stateFatal }

// Err returns the fatal error or the NotYet reason.
func (o Outcome) Err() error { return o.err }

func (o Outcome) String() string {
	switch o.state {
	case stateReady:
		return "ready"
	case stateNotYet:
		return "not-yet"
	case stateFatal:
		return "fatal"
	}
	return "unset"
}

// Check evaluates a condition once.
type Check func(ctx context.Context) Outcome

// Clock abstracts time so the loop can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock is the wall clock. time.Now carries a monotonic reading, so
// deadlines are immune to wall clock jumps.
var RealClock Clock = realClock{}

// Poller runs checks under a timeout at a fixed interval.
type Poller struct {
	timeout  time.Duration
	interval time.Duration
	clock    Clock
	logger   *zap.Logger
}

// New returns a Poller. A non-positive interval is replaced by the timeout,
// which degrades to checking at the start and at the deadline.
func New(timeout, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{timeout: timeout, interval: interval, clock: RealClock, logger: logger.Named("poll")}
}

// WithClock returns a copy of p driven by c.
func (p *Poller) WithClock(c Clock) *Poller {
	cp := *p
	cp.clock = c
	return &cp
}

// WithTimeout returns a copy of p with a different bound. A non-positive d
// keeps the current one.
func (p *Poller) WithTimeout(d time.Duration) *Poller {
	if d <= 0 {
		return p
	}
	cp := *p
	cp.timeout = d
	return &cp
}

func (p *Poller) Timeout() time.Duration  { return p.timeout }
func (p *Poller) Interval() time.Duration { return p.interval }

// Until evaluates check immediately and then once per interval until it
// reports Ready or Fatal, ctx is done, or the timeout elapses. The last
// sleep is clipped to the deadline and the check runs once more at the
// deadline, so a condition that never holds returns no earlier than the
// timeout and no later than the timeout plus one check.
//
// Each attempt gets a context bounded by the deadline plus one interval so a
// hung driver call cannot hold the loop open. An attempt cut off that way
// counts as NotYet, so the loop still ends in a *browser.TimeoutError.
func (p *Poller) Until(ctx context.Context, op, target string, check Check) error {
	start := p.clock.Now()
	deadline := start.Add(p.timeout)
	logger := observability.OpLogger(p.logger, op, target, "")

	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s %s: %w", op, target, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, deadline.Sub(p.clock.Now())+p.interval)
		out := check(attemptCtx)
		cutOff := attemptCtx.Err() != nil && ctx.Err() == nil
		cancel()
		if cutOff && out.IsFatal() && errors.Is(out.Err(), context.DeadlineExceeded) {
			// The attempt outlived its own bound, not the caller's context.
			out = NotYet(out.Err())
		}

		now := p.clock.Now()
		switch {
		case out.IsReady():
			logger.Debug("Condition satisfied.", observability.Attempt(attempt, now.Sub(start))...)
			return nil
		case out.IsFatal():
			logger.Debug("Condition failed.", append(observability.Attempt(attempt, now.Sub(start)), zap.Error(out.Err()))...)
			return out.Err()
		}
		if out.Err() != nil {
			last = out.Err()
		}

		if !now.Before(deadline) {
			elapsed := now.Sub(start)
			logger.Debug("Condition timed out.", append(observability.Attempt(attempt, elapsed), zap.NamedError("last", last))...)
			return &browser.TimeoutError{Op: op, Target: target, Timeout: p.timeout, Elapsed: elapsed, Last: last}
		}

		wait := p.interval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		if err := p.clock.Sleep(ctx, wait); err != nil {
			return fmt.Errorf("%s %s: %w", op, target, err)
		}
	}
}
