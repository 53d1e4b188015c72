// File: internal/scenario/runner.go
package scenario

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/interact"
	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/observability"
	"github.com/xkilldash9x/crmpilot/internal/session"
	"github.com/xkilldash9x/crmpilot/internal/shared"
	"github.com/xkilldash9x/crmpilot/internal/wait"
)

// Driver is the part of a session a scenario needs.
type Driver interface {
	ID() string
	GoTo(ctx context.Context, url string) error
	WaitFor(ctx context.Context, loc locator.Locator, cond wait.Condition, opts ...wait.Option) error
	WaitForText(ctx context.Context, text string, visible bool, opts ...wait.Option) error
	WaitForPageReady(ctx context.Context, opts ...wait.Option) error
	Click(ctx context.Context, loc locator.Locator, opts interact.ClickOptions) error
	SendKeys(ctx context.Context, loc locator.Locator, text string) error
	Clear(ctx context.Context, loc locator.Locator) error
	SelectByValue(ctx context.Context, loc locator.Locator, v string) error
	SelectByText(ctx context.Context, loc locator.Locator, text string) error
	SelectByIndex(ctx context.Context, loc locator.Locator, n int) error
	SwitchToFrame(ctx context.Context, id string, opts ...wait.Option) error
	SwitchToNestedFrame(ctx context.Context, id string, opts ...wait.Option) error
	SwitchToParentFrame(ctx context.Context) error
	SwitchToDefault(ctx context.Context) error
	ResolveFrameOf(ctx context.Context, loc locator.Locator) (string, bool, error)
	AcceptAlert(ctx context.Context) error
	DismissAlert(ctx context.Context) error
	ExecuteScript(ctx context.Context, script string, args ...any) (any, error)
	Screenshot(ctx context.Context, label string) string
	Frame() browser.FrameContext
}

var _ Driver = (*session.Session)(nil)

// Status is the outcome of a step or scenario.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StepResult records one executed (or skipped) step.
type StepResult struct {
	Index    int           `json:"index"`
	Action   Action        `json:"action"`
	Target   string        `json:"target,omitempty"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Artifact string        `json:"artifact,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Result is the outcome of one scenario run.
type Result struct {
	Scenario string        `json:"scenario"`
	Session  string        `json:"session,omitempty"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Steps    []StepResult  `json:"steps"`
	// Err is the first failure, nil when the scenario passed.
	Err error `json:"-"`
}

// Failed reports whether the scenario did not pass.
func (r Result) Failed() bool { return r.Status != StatusPassed }

// Runner executes scenarios. It is safe for concurrent use; the pacing
// limiter and the random source are shared by every run.
type Runner struct {
	limiter *rate.Limiter
	random  *shared.Random
	logger  *zap.Logger
}

// NewRunner returns a Runner paced at cfg.StepRate steps per second, or
// unpaced when the rate is zero.
func NewRunner(cfg config.RunConfig, random *shared.Random, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if random == nil {
		random = shared.NewRandom()
	}
	limit := rate.Inf
	if cfg.StepRate > 0 {
		limit = rate.Limit(cfg.StepRate)
	}
	burst := cfg.StepBurst
	if burst < 1 {
		burst = 1
	}
	return &Runner{
		limiter: rate.NewLimiter(limit, burst),
		random:  random,
		logger:  logger.Named("scenario"),
	}
}

// Run executes sc on d. Steps after the first failure are skipped. The
// returned Result is complete even when the run fails; Err mirrors
// Result.Err.
func (r *Runner) Run(ctx context.Context, d Driver, sc Scenario) (Result, error) {
	res := Result{Scenario: sc.Name, Session: d.ID(), Status: StatusPassed}
	logger := r.logger.With(zap.String("scenario", sc.Name), zap.String("session", d.ID()))
	logger.Info("Scenario started.", zap.Int("steps", len(sc.Steps)))
	start := time.Now()

	steps := sc.Steps
	if sc.StartURL != "" {
		steps = append([]Step{{Action: ActionNavigate, URL: sc.StartURL}}, steps...)
	}

	for i, st := range steps {
		sr := StepResult{Index: i + 1, Action: st.Action, Target: describe(st)}
		if res.Err != nil {
			sr.Status = StatusSkipped
			res.Steps = append(res.Steps, sr)
			continue
		}

		stepStart := time.Now()
		artifact, err := r.step(ctx, d, st)
		sr.Duration = time.Since(stepStart)
		sr.Artifact = artifact

		stepLogger := observability.OpLogger(logger, string(st.Action), sr.Target, d.Frame().String())
		if err != nil {
			sr.Status, sr.Error = StatusFailed, err.Error()
			res.Status = StatusFailed
			res.Err = fmt.Errorf("step %d (%s): %w", sr.Index, st.Action, err)
			stepLogger.Warn("Step failed.", zap.Int("step", sr.Index), zap.Error(err))
		} else {
			sr.Status = StatusPassed
			stepLogger.Debug("Step passed.", zap.Int("step", sr.Index), zap.Duration("duration", sr.Duration))
		}
		res.Steps = append(res.Steps, sr)
	}

	res.Duration = time.Since(start)
	logger.Info("Scenario finished.", zap.String("status", string(res.Status)), zap.Duration("duration", res.Duration))
	return res, res.Err
}

func describe(st Step) string {
	switch {
	case st.Description != "":
		return st.Description
	case st.Target != nil:
		if loc, err := st.Target.Build(); err == nil {
			return loc.String()
		}
	case st.URL != "":
		return st.URL
	case st.Frame != "":
		return st.Frame
	}
	return ""
}

// step runs one step, returning an artifact name for screenshots.
func (r *Runner) step(ctx context.Context, d Driver, st Step) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var loc locator.Locator
	if st.Target != nil {
		var err error
		if loc, err = st.Target.Build(); err != nil {
			return "", err
		}
	}
	text, value := r.expand(st.Text), r.expand(st.Value)

	switch st.Action {
	case ActionNavigate:
		return "", d.GoTo(ctx, r.expand(st.URL))

	case ActionWait:
		cond, err := wait.ParseCondition(st.Condition)
		if err != nil {
			return "", err
		}
		opts := waitOptions(st, text, value)
		if st.Target == nil && (cond == wait.TextPresent || cond == wait.TextAbsent) {
			return "", d.WaitForText(ctx, text, cond == wait.TextPresent, opts...)
		}
		return "", d.WaitFor(ctx, loc, cond, opts...)

	case ActionClick:
		return "", d.Click(ctx, loc, interact.ClickOptions{Script: st.ScriptClick, Timeout: st.Timeout, Description: st.Description})

	case ActionType:
		return "", d.SendKeys(ctx, loc, text)

	case ActionClear:
		return "", d.Clear(ctx, loc)

	case ActionSelect:
		switch {
		case st.Value != "":
			return "", d.SelectByValue(ctx, loc, value)
		case st.Text != "":
			return "", d.SelectByText(ctx, loc, text)
		case st.Index != nil:
			return "", d.SelectByIndex(ctx, loc, *st.Index)
		}
		return "", errors.New("select needs value, text or index")

	case ActionFrame:
		opts := waitOptions(st, "", "")
		if st.Nested {
			return "", d.SwitchToNestedFrame(ctx, st.Frame, opts...)
		}
		return "", d.SwitchToFrame(ctx, st.Frame, opts...)

	case ActionFrameOf:
		_, found, err := d.ResolveFrameOf(ctx, loc)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("%s: %w", loc, browser.ErrElementNotFound)
		}
		return "", nil

	case ActionParentFrame:
		return "", d.SwitchToParentFrame(ctx)

	case ActionDefault:
		return "", d.SwitchToDefault(ctx)

	case ActionPageReady:
		return "", d.WaitForPageReady(ctx, waitOptions(st, "", "")...)

	case ActionAcceptAlert:
		return "", d.AcceptAlert(ctx)

	case ActionDismissAlert:
		return "", d.DismissAlert(ctx)

	case ActionScreenshot:
		label := st.Description
		if label == "" {
			label = value
		}
		return d.Screenshot(ctx, label), nil

	case ActionScript:
		_, err := d.ExecuteScript(ctx, st.Script)
		return "", err

	case ActionSleep:
		t := time.NewTimer(st.Duration)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
			return "", nil
		}
	}
	return "", fmt.Errorf("unknown action %q", st.Action)
}

func waitOptions(st Step, text, value string) []wait.Option {
	var opts []wait.Option
	if st.Timeout > 0 {
		opts = append(opts, wait.WithTimeout(st.Timeout))
	}
	if st.Description != "" {
		opts = append(opts, wait.WithDescription(st.Description))
	}
	if st.Attribute != "" {
		opts = append(opts, wait.WithAttribute(st.Attribute))
	}
	if value != "" {
		opts = append(opts, wait.WithValue(value))
	}
	if text != "" {
		opts = append(opts, wait.WithText(text))
	}
	return opts
}

// randomToken matches ${random:N}, replaced with N random digits.
var randomToken = regexp.MustCompile(`\$\{random:(\d+)\}`)

// maxRandomDigits bounds a single ${random:N} expansion.
const maxRandomDigits = 64

func (r *Runner) expand(s string) string {
	if s == "" {
		return s
	}
	return randomToken.ReplaceAllStringFunc(s, func(tok string) string {
		n, err := strconv.Atoi(randomToken.FindStringSubmatch(tok)[1])
		if err != nil {
			return tok
		}
		return r.random.Digits(min(n, maxRandomDigits))
	})
}
