package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rowcache/tablecache/internal/config"
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/stretchr/testify/require"
)

func withHooksDir(t *testing.T, setup func(dir string)) {
	t.Helper()
	config.Load()
	dir := t.TempDir()
	if setup != nil {
		setup(dir)
	}
	config.SetForTesting("hooks_dir", dir)
	config.SetForTesting("hooks_enabled", "true")
	t.Cleanup(func() {
		config.SetForTesting("hooks_enabled", "false")
	})
}

func writeScript(t *testing.T, dir, point, name, body string) {
	t.Helper()
	pointDir := filepath.Join(dir, point)
	require.NoError(t, os.MkdirAll(pointDir, 0o755))
	path := filepath.Join(pointDir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
}

func TestScriptHooksAddPendingValueRunsHookAndMarksInsertionNeeded(t *testing.T) {
	withHooksDir(t, func(dir string) {
		writeScript(t, dir, pointAddPending, "10-log.sh", "#!/bin/sh\nexit 0\n")
	})

	h := NewScriptHooks()
	require.False(t, h.IsInsertionNeeded())
	require.True(t, h.AddPendingValue(rowschema.Row{rowschema.CellInt64(7)}))
	require.True(t, h.IsInsertionNeeded())
}

func TestScriptHooksAddPendingValueVetoedOnAbortFailure(t *testing.T) {
	withHooksDir(t, func(dir string) {
		writeScript(t, dir, pointAddPending, "10-reject.sh", "#!/bin/sh\nexit 1\n")
	})
	config.SetForTesting("hooks_failure_mode", "abort")
	t.Cleanup(func() { config.SetForTesting("hooks_failure_mode", "warn") })

	h := NewScriptHooks()
	require.False(t, h.AddPendingValue(rowschema.Row{rowschema.CellInt64(1)}))
}

func TestScriptHooksProcessDataInsertedClearsInsertionNeeded(t *testing.T) {
	withHooksDir(t, nil)

	h := NewScriptHooks()
	require.True(t, h.AddPendingValue(rowschema.Row{rowschema.CellInt64(1)}))
	require.True(t, h.IsInsertionNeeded())
	require.NoError(t, h.ProcessDataInserted())
	require.False(t, h.IsInsertionNeeded())
}

func TestScriptHooksDisabledIsNoop(t *testing.T) {
	config.Load()
	config.SetForTesting("hooks_enabled", "false")

	h := NewScriptHooks()
	require.True(t, h.AddPendingValue(rowschema.Row{rowschema.CellInt64(1)}))
	require.False(t, h.IsInsertionNeeded())
}
