// File: internal/suite/suite.go

// Package suite runs many scenarios concurrently, one browser session each.
package suite

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/crmpilot/internal/scenario"
	"github.com/xkilldash9x/crmpilot/internal/session"
)

// SessionFactory starts a fresh session per scenario.
type SessionFactory interface {
	NewSession(ctx context.Context) (*session.Session, error)
}

var _ SessionFactory = (*session.Factory)(nil)

// Suite runs scenarios with bounded parallelism. Sessions are never shared
// between scenarios.
type Suite struct {
	factory     SessionFactory
	runner      *scenario.Runner
	parallelism int
	logger      *zap.Logger
}

// New returns a Suite running at most parallelism scenarios at once.
func New(factory SessionFactory, runner *scenario.Runner, parallelism int, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parallelism < 1 {
		parallelism = 1
	}
	return &Suite{
		factory:     factory,
		runner:      runner,
		parallelism: parallelism,
		logger:      logger.Named("suite"),
	}
}

// Run executes every scenario and returns their results in input order. A
// failing scenario does not stop the others; canceling ctx does, and the
// scenarios that never started are reported as skipped. The error is non-nil
// when any scenario did not pass.
func (s *Suite) Run(ctx context.Context, scenarios []scenario.Scenario) ([]scenario.Result, error) {
	results := make([]scenario.Result, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	s.logger.Info("Suite started.", zap.Int("scenarios", len(scenarios)), zap.Int("parallelism", s.parallelism))
	start := time.Now()

	for i, sc := range scenarios {
		if gctx.Err() != nil {
			results[i] = skipped(sc, gctx.Err())
			continue
		}
		g.Go(func() error {
			results[i] = s.runOne(gctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	s.logger.Info("Suite finished.",
		zap.Int("passed", len(results)-failed),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
	if failed > 0 {
		return results, fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return results, nil
}

func (s *Suite) runOne(ctx context.Context, sc scenario.Scenario) scenario.Result {
	if err := ctx.Err(); err != nil {
		return skipped(sc, err)
	}
	sess, err := s.factory.NewSession(ctx)
	if err != nil {
		s.logger.Error("Could not start session.", zap.String("scenario", sc.Name), zap.Error(err))
		return scenario.Result{Scenario: sc.Name, Status: scenario.StatusFailed, Err: err}
	}
	defer func() {
		if err := sess.Close(ctx); err != nil {
			s.logger.Warn("Session did not close cleanly.", zap.String("session", sess.ID()), zap.Error(err))
		}
	}()

	sess.Services().Journal.Separator(sc.Name)
	res, _ := s.runner.Run(ctx, sess, sc)
	return res
}

func skipped(sc scenario.Scenario, err error) scenario.Result {
	return scenario.Result{Scenario: sc.Name, Status: scenario.StatusSkipped, Err: fmt.Errorf("not started: %w", err)}
}
