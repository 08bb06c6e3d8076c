package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/savingsbot/internal/backup"
	"github.com/cameronsjo/savingsbot/internal/config"
	"github.com/cameronsjo/savingsbot/internal/manifest"
	"github.com/cameronsjo/savingsbot/internal/savings"
	"github.com/cameronsjo/savingsbot/internal/store"
)

// seedLedger writes one goal with one deposit for user 42.
func seedLedger(t *testing.T, dataDir string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(filepath.Join(dataDir, config.DBFile), store.Options{})
	require.NoError(t, err)
	defer st.Close()

	svc := savings.NewService(st)
	g, err := svc.Create(ctx, 42, "Bike", 300, "EUR", savings.KindGoal)
	require.NoError(t, err)
	_, _, err = svc.AddEntry(ctx, g.ID, 50)
	require.NoError(t, err)
}

func TestExport(t *testing.T) {
	env := setupEnv(t)
	out := t.TempDir()

	_, err := executeCmd(t, "export", "--out", out, "--env-file", env.envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database")

	seedLedger(t, env.dataDir)

	output, err := executeCmd(t, "export", "--out", out, "--env-file", env.envFile)
	require.NoError(t, err)
	assert.Contains(t, output, "1 transaction(s)")

	csvs, err := filepath.Glob(filepath.Join(out, "export_*.csv"))
	require.NoError(t, err)
	assert.Len(t, csvs, 1)
	pdfs, err := filepath.Glob(filepath.Join(out, "report_*.pdf"))
	require.NoError(t, err)
	assert.Len(t, pdfs, 1)
}

func TestBackupCommands(t *testing.T) {
	env := setupEnv(t)
	seedLedger(t, env.dataDir)

	output, err := executeCmd(t, "backup", "list", "--env-file", env.envFile)
	require.NoError(t, err)
	assert.Contains(t, output, "No backups")

	output, err = executeCmd(t, "backup", "create", "--env-file", env.envFile)
	require.NoError(t, err)
	assert.Contains(t, output, "Created "+backup.Prefix)

	backups, err := backup.List(filepath.Join(env.dataDir, "backups"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	name := backups[0].Name

	output, err = executeCmd(t, "backup", "list", "--env-file", env.envFile)
	require.NoError(t, err)
	assert.Contains(t, output, name)

	output, err = executeCmd(t, "backup", "restore", name, "--yes", "--env-file", env.envFile)
	require.NoError(t, err)
	assert.Contains(t, output, "Restored "+name)

	output, err = executeCmd(t, "backup", "list", "--env-file", env.envFile)
	require.NoError(t, err)
	assert.Contains(t, output, backup.PreRestorePrefix)
	assert.Contains(t, output, "(pre-restore)")

	_, err = executeCmd(t, "backup", "restore", "nonsense.db", "--yes", "--env-file", env.envFile)
	assert.ErrorIs(t, err, backup.ErrInvalidName)
}

func TestDoctor(t *testing.T) {
	env := setupEnv(t)

	_, err := executeCmd(t, "doctor", "--env-file", env.envFile)
	require.Error(t, err, "no token and no manifest")

	require.NoError(t, manifest.Write(env.manifest, manifest.Default()))
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	output, err := executeCmd(t, "doctor", "--env-file", env.envFile)
	require.NoError(t, err)
	assert.Contains(t, output, "config: ok")
	assert.Contains(t, output, "manifest: ok")
	assert.Contains(t, output, "All checks passed")
}
