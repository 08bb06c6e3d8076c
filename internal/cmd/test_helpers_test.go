package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags puts every flag back to its default so values set by one
// test do not leak into the next through the package-level variables.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCmd executes the root command with the given args and returns the output.
// This handles proper state reset between test executions.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	// Important: Set args BEFORE setting output buffers
	rootCmd.SetArgs(args)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

type testEnv struct {
	dataDir  string
	manifest string
	envFile  string
}

// setupEnv points the CLI at a scratch data dir and manifest.
func setupEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dataDir:  filepath.Join(dir, "data"),
		manifest: filepath.Join(dir, "render.yaml"),
		envFile:  filepath.Join(dir, ".env"),
	}

	t.Setenv("DATA_DIR", env.dataDir)
	t.Setenv("MANIFEST_PATH", env.manifest)
	t.Setenv("ALLOWED_USER_ID", "42")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DISCORD_WEBHOOK_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	return env
}
