// File: cmd/root_test.go
package cmd

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

func TestInitializeConfig(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()
	cfgFile = writeFile(t, dir, "crmpilot.yaml", quietConfig+"  kind: firefox\nrun:\n  parallelism: 3\n")
	t.Setenv("CRMPILOT_RUN_PARALLELISM", "5")
	t.Setenv("RUN_HEADLESS", "true")

	v := viper.New()
	config.SetDefaults(v)
	require.NoError(t, initializeConfig(rootCmd, v))
	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, config.KindFirefox, cfg.Browser().Kind)
	assert.Equal(t, 5, cfg.Run().Parallelism, "environment wins over the file")
	assert.True(t, cfg.Browser().Headless)
	assert.Empty(t, cfg.Logger().LogFile)
}

func TestInitializeConfigErrors(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()

	t.Run("missing default file is fine", func(t *testing.T) {
		cfgFile = ""
		v := viper.New()
		v.AddConfigPath(dir)
		assert.NoError(t, initializeConfig(rootCmd, v))
	})

	t.Run("malformed explicit file", func(t *testing.T) {
		cfgFile = writeFile(t, dir, "bad.yaml", "browser: [unterminated\n")
		err := initializeConfig(rootCmd, viper.New())
		assert.ErrorContains(t, err, "error reading config file")
	})
}

func TestRootStoresConfigInContext(t *testing.T) {
	resetForTest(t)
	path := writeFile(t, t.TempDir(), "config.yaml", quietConfig)

	var got *config.Config
	extra := &cobra.Command{
		Use: "inspect",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			got, err = configFrom(cmd)
			return err
		},
	}
	rootCmd.AddCommand(extra)

	_, err := execute(t, "inspect", "--config", path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0.005, got.Browser().WaitMinutes)
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	resetForTest(t)
	path := writeFile(t, t.TempDir(), "config.yaml", quietConfig+"run:\n  parallelism: 0\n")

	_, err := execute(t, "run", "--config", path, "missing.yaml")
	assert.ErrorContains(t, err, "run.parallelism must be a positive integer")
}

func TestConfigFromWithoutContext(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	_, err := configFrom(cmd)
	assert.Error(t, err)
}

func TestExecuteExitsOnFailure(t *testing.T) {
	resetForTest(t)
	code := -1
	osExit = func(c int) { code = c }
	rootCmd.SetArgs([]string{"locator"})
	Execute()
	assert.Equal(t, 1, code)
}

func TestVersionCommand(t *testing.T) {
	resetForTest(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestLocatorCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    locator.Locator
		wantErr string
	}{
		{
			name: "attribute prefix match",
			args: []string{"--attr", "data-id", "--mode", "prefix", "--match", "acct-"},
			want: locator.PrefixMatch("data-id", "acct-"),
		},
		{
			name: "full match is the default mode",
			args: []string{"--attr", "name", "--match", "email"},
			want: locator.FullMatch("name", "email"),
		},
		{
			name: "tag contains",
			args: []string{"--tag", "button", "--attr", "title", "--contains", "Save"},
			want: locator.XPath("button", "title", "Save"),
		},
		{
			name: "plain strategy",
			args: []string{"--by", "css", "--value", "div.crm-grid"},
			want: locator.CSS("div.crm-grid"),
		},
		{
			name:    "unknown mode",
			args:    []string{"--attr", "name", "--mode", "fuzzy", "--match", "x"},
			wantErr: "fuzzy",
		},
		{
			name:    "nothing to build",
			args:    nil,
			wantErr: "locator needs by, attr or tag",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetForTest(t)
			out, err := execute(t, append([]string{"locator"}, tt.args...)...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.String()+"\n", out)
		})
	}
}
