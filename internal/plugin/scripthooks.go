package plugin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rowcache/tablecache/internal/config"
	"github.com/rowcache/tablecache/internal/rowschema"
)

// Hook point directory names under hooks_dir.
const (
	pointAddPending    = "add-pending"
	pointDeletePending = "delete-pending"
	pointDataInserted  = "data-inserted"
	pointDataSelected  = "data-selected"
	pointClear         = "clear"
)

// ScriptHooks implements Hooks by dispatching each event to external
// scripts kept in a hooks-directory, one subdirectory per hook point,
// the way a cache's notification layer dispatches to shell scripts
// instead of in-process callbacks.
type ScriptHooks struct {
	asyncPending      sync.WaitGroup
	asyncPendingMu    sync.Mutex
	asyncPendingCount int

	insertionNeededMu sync.Mutex
	insertionNeeded   bool
}

var _ Hooks = (*ScriptHooks)(nil)

// NewScriptHooks returns a ScriptHooks reading its directory and
// behavior from the global configuration (hooks_dir, hooks_enabled,
// hooks_failure_mode, hooks_async, hooks_async_timeout, max_hooks).
func NewScriptHooks() *ScriptHooks {
	return &ScriptHooks{}
}

func (h *ScriptHooks) hooksDir() string {
	return config.Get("hooks_dir", "")
}

func (h *ScriptHooks) enabled() bool {
	return config.GetBool("hooks_enabled", false)
}

func (h *ScriptHooks) failureMode() string {
	return config.Get("hooks_failure_mode", "warn")
}

func (h *ScriptHooks) asyncEnabled() bool {
	return config.GetBool("hooks_async", false)
}

func (h *ScriptHooks) asyncTimeout() time.Duration {
	return time.Duration(config.GetInt("hooks_async_timeout", 30)) * time.Second
}

func (h *ScriptHooks) maxAsyncHooks() int {
	return config.GetInt("max_hooks", 10)
}

// AddPendingValue runs the add-pending hook point for row. A nonzero
// exit from a synchronous script vetoes the row only when
// hooks_failure_mode is "abort".
func (h *ScriptHooks) AddPendingValue(row rowschema.Row) bool {
	if !h.enabled() {
		return true
	}
	envVars := []string{fmt.Sprintf("ROW_ID=%d", row.ID())}
	if err := h.run(pointAddPending, envVars); err != nil {
		return false
	}
	h.insertionNeededMu.Lock()
	h.insertionNeeded = true
	h.insertionNeededMu.Unlock()
	return true
}

// DeletePendingValue runs the delete-pending hook point for id.
func (h *ScriptHooks) DeletePendingValue(id int64) {
	if !h.enabled() {
		return
	}
	_ = h.run(pointDeletePending, []string{fmt.Sprintf("ROW_ID=%d", id)})
	h.insertionNeededMu.Lock()
	h.insertionNeeded = true
	h.insertionNeededMu.Unlock()
}

// ProcessDataInserted runs the data-inserted hook point once per
// batch; a failing synchronous script with failure mode "abort"
// propagates as an error so the caller rolls back its transaction.
func (h *ScriptHooks) ProcessDataInserted() error {
	h.insertionNeededMu.Lock()
	h.insertionNeeded = false
	h.insertionNeededMu.Unlock()
	if !h.enabled() {
		return nil
	}
	return h.run(pointDataInserted, nil)
}

// IsInsertionNeeded reports whether a pending add/delete has occurred
// since the last ProcessDataInserted.
func (h *ScriptHooks) IsInsertionNeeded() bool {
	h.insertionNeededMu.Lock()
	defer h.insertionNeededMu.Unlock()
	return h.insertionNeeded
}

// ProcessDataSelected runs the data-selected hook point.
func (h *ScriptHooks) ProcessDataSelected() {
	if !h.enabled() {
		return
	}
	_ = h.run(pointDataSelected, nil)
}

// ProcessClear runs the clear hook point.
func (h *ScriptHooks) ProcessClear() {
	if !h.enabled() {
		return
	}
	_ = h.run(pointClear, nil)
}

// MakeExtraData has no script-hook equivalent; ScriptHooks never
// attaches extra data to a window snapshot.
func (h *ScriptHooks) MakeExtraData() any { return nil }

// Shutdown waits for any still-running async hooks to finish.
func (h *ScriptHooks) Shutdown() {
	h.asyncPending.Wait()
}

func (h *ScriptHooks) run(hookPoint string, envVars []string) error {
	hookDir := filepath.Join(h.hooksDir(), hookPoint)
	files, err := os.ReadDir(hookDir)
	if err != nil {
		return nil
	}

	envMap := map[string]string{
		"HOOK_POINT":     hookPoint,
		"HOOK_TIMESTAMP": time.Now().Format(time.RFC3339),
	}
	for _, v := range envVars {
		for i := 0; i < len(v); i++ {
			if v[i] == '=' {
				envMap[v[:i]] = v[i+1:]
				break
			}
		}
	}

	type scriptInfo struct {
		path string
		name string
	}
	var scripts []scriptInfo
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		scriptPath := filepath.Join(hookDir, f.Name())
		info, err := os.Stat(scriptPath)
		if err != nil || info.Mode()&0111 == 0 {
			continue
		}
		scripts = append(scripts, scriptInfo{path: scriptPath, name: f.Name()})
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].name < scripts[j].name })
	if len(scripts) == 0 {
		return nil
	}

	failureMode := h.failureMode()
	asyncEnabled := h.asyncEnabled()
	maxAsync := h.maxAsyncHooks()

	for _, s := range scripts {
		if asyncEnabled {
			h.asyncPendingMu.Lock()
			if h.asyncPendingCount >= maxAsync {
				h.asyncPendingMu.Unlock()
				fmt.Fprintf(os.Stderr, "warning: too many async hooks pending (max %d), skipping %s\n", maxAsync, s.name)
				continue
			}
			h.asyncPendingCount++
			h.asyncPending.Add(1)
			h.asyncPendingMu.Unlock()
			go h.runAsync(s.path, s.name, envMap)
			continue
		}
		if err := h.runSync(s.path, s.name, envMap, failureMode); err != nil && failureMode == "abort" {
			return err
		}
	}
	return nil
}

func (h *ScriptHooks) runSync(scriptPath, scriptName string, envMap map[string]string, failureMode string) error {
	cmd := exec.Command(scriptPath)
	cmd.Env = os.Environ()
	for k, v := range envMap {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		switch failureMode {
		case "abort":
			return fmt.Errorf("hook %s failed: %w, output: %s", scriptName, err, output)
		case "warn":
			fmt.Fprintf(os.Stderr, "warning: hook %s failed: %v, output: %s\n", scriptName, err, output)
		}
	}
	return nil
}

func (h *ScriptHooks) runAsync(scriptPath, scriptName string, envMap map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.asyncTimeout())
	defer cancel()
	cmd := exec.CommandContext(ctx, scriptPath)
	cmd.Env = os.Environ()
	for k, v := range envMap {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	defer func() {
		h.asyncPendingMu.Lock()
		h.asyncPendingCount--
		h.asyncPendingMu.Unlock()
		h.asyncPending.Done()
	}()
	if err := cmd.Run(); err != nil && ctx.Err() == context.DeadlineExceeded {
		fmt.Fprintf(os.Stderr, "warning: async hook %s timed out\n", scriptName)
	}
}
