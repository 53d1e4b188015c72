// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/observability"
	"github.com/xkilldash9x/crmpilot/internal/scenario"
	"github.com/xkilldash9x/crmpilot/internal/session"
	"github.com/xkilldash9x/crmpilot/internal/shared"
	"github.com/xkilldash9x/crmpilot/internal/suite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newController starts the browser behind each session. Tests replace it.
var newController session.ControllerFactory = session.DefaultControllerFactory

type runOptions struct {
	format string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [scenario.yaml...]",
		Short: "Run one or more scenario files",
		Long: `Run loads each scenario file, starts one browser session per scenario and
executes the steps in order. Scenarios run concurrently up to --parallel.
The command exits non-zero when any scenario fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlagOverrides(cmd, cfg); err != nil {
				return err
			}
			logger := observability.GetLogger()
			return runScenarios(cmd.Context(), cfg, afero.NewOsFs(), args, opts.format, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().IntP("parallel", "p", 1, "Number of scenarios to run at once")
	cmd.Flags().Bool("headless", false, "Run the browser without a window")
	cmd.Flags().String("driver", "", "Automation backend: webdriver or cdp")
	cmd.Flags().String("kind", "", "Browser: chrome, firefox, ie or edge")
	cmd.Flags().String("remote-url", "", "WebDriver endpoint")
	cmd.Flags().Float64("wait-minutes", 0, "Bound on every wait, in minutes")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Result format: text or json")
	return cmd
}

// applyRunFlagOverrides copies explicitly set flags over the loaded
// configuration and revalidates it.
func applyRunFlagOverrides(cmd *cobra.Command, cfg config.Interface) error {
	flags := cmd.Flags()
	if flags.Changed("parallel") {
		n, _ := flags.GetInt("parallel")
		cfg.SetRunParallelism(n)
	}
	if flags.Changed("headless") {
		b, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(b)
	}
	if flags.Changed("driver") {
		d, _ := flags.GetString("driver")
		cfg.SetBrowserDriver(config.DriverKind(d))
	}
	if flags.Changed("kind") {
		s, _ := flags.GetString("kind")
		k, err := config.ParseBrowserKind(s)
		if err != nil {
			return err
		}
		cfg.SetBrowserKind(k)
	}
	if flags.Changed("remote-url") {
		u, _ := flags.GetString("remote-url")
		cfg.SetBrowserRemoteURL(u)
	}
	if flags.Changed("wait-minutes") {
		m, _ := flags.GetFloat64("wait-minutes")
		cfg.SetBrowserWaitMinutes(m)
	}
	if c, ok := cfg.(*config.Config); ok {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}
	}
	return nil
}

func runScenarios(ctx context.Context, cfg config.Interface, fs afero.Fs, paths []string, format string, out io.Writer, logger *zap.Logger) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
	scenarios, err := scenario.LoadAll(fs, paths)
	if err != nil {
		return err
	}

	svc, err := shared.NewServices(cfg.Journal())
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close the journal.", zap.Error(err))
		}
	}()

	factory := session.NewFactory(cfg, svc, logger, session.WithControllerFactory(newController))
	runner := scenario.NewRunner(cfg.Run(), svc.Random, logger)
	results, runErr := suite.New(factory, runner, cfg.Run().Parallelism, logger).Run(ctx, scenarios)

	if err := printResults(out, format, results); err != nil {
		return err
	}
	return runErr
}

func printResults(out io.Writer, format string, results []scenario.Result) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		fmt.Fprintf(out, "%-7s %s (%s)\n", r.Status, r.Scenario, r.Duration.Round(time.Millisecond))
		for _, st := range r.Steps {
			if st.Status != scenario.StatusFailed {
				continue
			}
			fmt.Fprintf(out, "        step %d %s %s: %s\n", st.Index, st.Action, st.Target, st.Error)
			if st.Artifact != "" {
				fmt.Fprintf(out, "        screenshot: %s\n", st.Artifact)
			}
		}
		if r.Err != nil && len(r.Steps) == 0 {
			fmt.Fprintf(out, "        %v\n", r.Err)
		}
	}
	return nil
}
