package reno

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hook.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestRunHookSuccess(t *testing.T) {
	path := writeScript(t, "#!/bin/sh\ncat >/dev/null\nexit 0\n")
	state := &specs.State{ID: "c1"}
	err := runHook("startContainer", specs.Hook{Path: path}, state)
	assert.NoError(t, err)
}

func TestRunHookNonZeroExit(t *testing.T) {
	path := writeScript(t, "#!/bin/sh\ncat >/dev/null\nexit 7\n")
	state := &specs.State{ID: "c1"}
	err := runHook("startContainer", specs.Hook{Path: path}, state)
	assert.Error(t, err)
}

func TestRunHookTimeout(t *testing.T) {
	path := writeScript(t, "#!/bin/sh\nsleep 5\n")
	timeout := 1
	state := &specs.State{ID: "c1"}
	err := runHook("poststart", specs.Hook{Path: path, Timeout: &timeout}, state)
	assert.Error(t, err)
}

func TestRunHookReceivesState(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "state.json")
	script := "#!/bin/sh\ncat > " + outPath + "\n"
	path := writeScript(t, script)

	state := &specs.State{ID: "c1", Pid: 99, Bundle: "/bundles/c1"}
	require.NoError(t, runHook("createContainer", specs.Hook{Path: path}, state))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var got specs.State
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, state.ID, got.ID)
	assert.Equal(t, state.Pid, got.Pid)
}

func TestHookSummary(t *testing.T) {
	assert.Equal(t, "none", hookSummary(nil))
	assert.Equal(t, "none", hookSummary(&specs.Hooks{}))
	assert.Equal(t, "prestart,poststop", hookSummary(&specs.Hooks{
		Prestart: []specs.Hook{{Path: "/bin/true"}},
		Poststop: []specs.Hook{{Path: "/bin/true"}},
	}))
}

func TestRunHooksStopsAtFirstFailure(t *testing.T) {
	good := writeScript(t, "#!/bin/sh\ncat >/dev/null\nexit 0\n")
	bad := writeScript(t, "#!/bin/sh\ncat >/dev/null\nexit 1\n")
	state := &specs.State{ID: "c1"}

	err := runHooks("prestart", []specs.Hook{{Path: good}, {Path: bad}, {Path: good}}, state)
	assert.Error(t, err)
}
