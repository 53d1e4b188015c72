// File: internal/session/session.go

// Package session is the public face of the engine: one Session drives one
// browser on behalf of one goroutine. Every operation is journaled with its
// op, target and frame, and a final failure is returned as a
// *browser.OpError carrying the diagnostic screenshot name.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/diagnostics"
	"github.com/xkilldash9x/crmpilot/internal/frames"
	"github.com/xkilldash9x/crmpilot/internal/interact"
	"github.com/xkilldash9x/crmpilot/internal/observability"
	"github.com/xkilldash9x/crmpilot/internal/pageready"
	"github.com/xkilldash9x/crmpilot/internal/poll"
	"github.com/xkilldash9x/crmpilot/internal/shared"
	"github.com/xkilldash9x/crmpilot/internal/wait"
)

const (
	screenshotTimeout = 15 * time.Second
	closeTimeout      = 30 * time.Second
)

// Session owns a controller and the components that synchronize with it.
// It is not safe for concurrent use; run one Session per goroutine.
type Session struct {
	id       string
	ctrl     browser.Controller
	cfg      config.BrowserConfig
	svc      *shared.Services
	capturer *diagnostics.Capturer
	logger   *zap.Logger

	switcher *browser.Switcher
	poller   *poll.Poller
	gate     *pageready.Gate
	waits    *wait.Engine
	resolver *frames.Resolver
	actions  *interact.Interactor

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// New wires a Session around ctrl. svc and capturer may be nil, in which
// case nothing is journaled and no screenshots are written.
func New(ctrl browser.Controller, cfg config.BrowserConfig, svc *shared.Services, capturer *diagnostics.Capturer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if svc == nil {
		svc = shared.NewNopServices()
	}
	id := uuid.New().String()
	log := logger.With(zap.String(observability.KeySession, id), zap.String("browser", string(ctrl.Kind())))

	timeout := cfg.WaitTimeout()
	switcher := browser.NewSwitcher(ctrl, log)
	poller := poll.New(timeout, cfg.PollInterval, log)
	gate := pageready.New(ctrl, switcher, cfg.PageReadyInterval, timeout, log)
	waits := wait.New(ctrl, switcher, poller, gate, log)

	s := &Session{
		id:       id,
		ctrl:     ctrl,
		cfg:      cfg,
		svc:      svc,
		capturer: capturer,
		logger:   log.Named("session"),
		switcher: switcher,
		poller:   poller,
		gate:     gate,
		waits:    waits,
		resolver: frames.NewResolver(ctrl, switcher, gate, waits, log),
		actions:  interact.New(ctrl, waits, poller, cfg.ForceScriptClick, log),
	}
	s.logger.Info("Session started.", zap.Duration("wait_timeout", timeout), zap.Duration("poll_interval", cfg.PollInterval))
	return s
}

// ID is the session's unique id, present on every journal entry.
func (s *Session) ID() string { return s.id }

// Kind reports the browser family being driven.
func (s *Session) Kind() config.BrowserKind { return s.ctrl.Kind() }

// Frame returns the frame context the session is switched into.
func (s *Session) Frame() browser.FrameContext { return s.switcher.Current() }

// WaitTimeout is the bound applied to every wait that does not override it.
func (s *Session) WaitTimeout() time.Duration { return s.poller.Timeout() }

// Services returns the shared run services.
func (s *Session) Services() *shared.Services { return s.svc }

// Logger returns the session's logger.
func (s *Session) Logger() *zap.Logger { return s.logger }

// IsDriverOpen reports whether the browser still answers. It is false once
// the session is closed.
func (s *Session) IsDriverOpen(ctx context.Context) bool {
	if s.closed {
		return false
	}
	_, err := s.ctrl.WindowHandles(ctx)
	return err == nil
}

// BrowserErrors returns the severe browser console entries logged since the
// previous call.
func (s *Session) BrowserErrors(ctx context.Context) ([]string, error) {
	var entries []string
	err := s.do(ctx, "browser errors", "", func(ctx context.Context) error {
		cr, ok := s.ctrl.(browser.ConsoleReader)
		if !ok {
			return fmt.Errorf("%s controller cannot read the console: %w", s.ctrl.Kind(), errors.ErrUnsupported)
		}
		var err error
		entries, err = cr.ConsoleErrors(ctx)
		return err
	})
	return entries, err
}

// Close quits the browser. Later calls return the first call's result.
// Console errors still pending are logged first.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		s.reportConsole(closeCtx)
		s.closed = true
		s.closeErr = s.ctrl.Close(closeCtx)
		s.svc.Journal.Command("close", s.fields("close", "")...)
		if s.closeErr != nil {
			s.logger.Warn("Browser did not close cleanly.", zap.Error(s.closeErr))
			return
		}
		s.logger.Info("Session closed.")
	})
	return s.closeErr
}

func (s *Session) reportConsole(ctx context.Context) {
	cr, ok := s.ctrl.(browser.ConsoleReader)
	if !ok {
		return
	}
	entries, err := cr.ConsoleErrors(ctx)
	if err != nil {
		s.logger.Debug("Could not read the browser console.", zap.Error(err))
		return
	}
	if len(entries) > 0 {
		s.logger.Warn("Browser console reported errors.", zap.Strings("entries", entries))
	}
}

func (s *Session) fields(op, target string) []zap.Field {
	return append(observability.OpFields(op, target, s.switcher.Current().String()), zap.String(observability.KeySession, s.id))
}

// do runs one public operation: it journals the command and, on failure,
// turns err into an *OpError with a screenshot attached.
func (s *Session) do(ctx context.Context, op, target string, fn func(ctx context.Context) error) error {
	s.svc.Journal.Command(op, s.fields(op, target)...)
	err := fn(ctx)
	if err == nil {
		return nil
	}
	return s.fail(ctx, op, target, err)
}

func (s *Session) fail(ctx context.Context, op, target string, err error) *browser.OpError {
	frame := s.switcher.Current().String()

	// Capture on a context that outlives the caller's, which may be the
	// reason the operation failed.
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	shot := s.capturer.Capture(shotCtx, s.ctrl, op+" "+target)
	cancel()

	var oe *browser.OpError
	if top, ok := err.(*browser.OpError); ok {
		// The failing layer already classified it; fill in the session view.
		oe = top
		if oe.Target == "" {
			oe.Target = target
		}
	} else {
		oe = &browser.OpError{Op: op, Target: target, Kind: browser.Classify(err), Err: err}
	}
	oe.Frame = frame
	oe.Screenshot = shot

	fields := append(observability.OpFields(op, target, frame),
		zap.String(observability.KeySession, s.id),
		zap.String("kind", string(oe.Kind)),
		zap.String("screenshot", shot),
		zap.Error(err),
	)
	s.svc.Journal.Issue(op+" failed", fields...)
	s.logger.Error("Operation failed.", fields...)
	return oe
}

// ignore reports whether err is one of targets, for operations that treat
// some failures as success.
func ignore(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
