// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/crmpilot/internal/observability"
)

// quietConfig keeps test runs off the real log, journal and screenshot paths
// and shortens every wait.
const quietConfig = `
logger:
  level: fatal
  log_file: ""
journal:
  enabled: false
diagnostics:
  enabled: false
browser:
  wait_minutes: 0.005
  poll_interval: 10ms
  page_ready_interval: 10ms
`

// resetForTest restores package state so each test sees a pristine root command.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	osExit = os.Exit
	observability.ResetForTest()
	rootCmd = newRootCmd()
	t.Cleanup(func() {
		newController = defaultController
		observability.ResetForTest()
	})
}

var defaultController = newController

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
