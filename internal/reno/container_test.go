package reno

import (
	"os"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/reno-project/reno/internal/oci"
)

func TestSignalFromName(t *testing.T) {
	tests := map[string]unix.Signal{
		"HUP":     unix.SIGHUP,
		"SIGHUP":  unix.SIGHUP,
		"term":    unix.SIGTERM,
		"KILL":    unix.SIGKILL,
		"":        unix.SIGKILL,
		"bogus":   unix.SIGKILL,
		"USR1":    unix.SIGUSR1,
	}
	for name, want := range tests {
		assert.Equal(t, want, signalFromName(name), "name=%q", name)
	}
}

func TestRefreshStateIgnoresTerminalStatuses(t *testing.T) {
	state := &oci.ContainerState{State: specs.State{Status: specs.StateStopped, Pid: 999999999}}
	RefreshState(state)
	assert.Equal(t, specs.StateStopped, state.Status)
}

func TestRefreshStateMarksDeadProcessStopped(t *testing.T) {
	// A pid this large cannot correspond to a live process.
	state := &oci.ContainerState{State: specs.State{Status: specs.StateRunning, Pid: 999999999}}
	RefreshState(state)
	assert.Equal(t, specs.StateStopped, state.Status)
}

func TestDeleteRefusesRunningContainer(t *testing.T) {
	root := t.TempDir()
	id := "c1"
	state := &oci.ContainerState{State: specs.State{ID: id, Status: specs.StateRunning, Pid: os.Getpid()}}
	mustSave(t, state, root, id)

	err := Delete(root, id)
	assert.Error(t, err)
	assert.True(t, oci.Exists(root, id))
}

func TestDeleteRefusesCreatedContainer(t *testing.T) {
	root := t.TempDir()
	id := "c1"
	state := &oci.ContainerState{State: specs.State{ID: id, Status: specs.StateCreated, Pid: os.Getpid()}}
	mustSave(t, state, root, id)

	err := Delete(root, id)
	assert.Error(t, err)
	assert.True(t, oci.Exists(root, id))
}

func TestDeleteRemovesStoppedContainer(t *testing.T) {
	root := t.TempDir()
	id := "c1"
	// An empty Bundle makes the post-removal poststop-hook lookup fail
	// gracefully, exercising Delete's "bundle unreadable" skip path.
	state := &oci.ContainerState{State: specs.State{ID: id, Status: specs.StateStopped, Pid: os.Getpid()}}
	mustSave(t, state, root, id)

	err := Delete(root, id)
	assert.NoError(t, err)
	assert.False(t, oci.Exists(root, id))
}

func mustSave(t *testing.T, state *oci.ContainerState, root, id string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(oci.Dir(root, id), 0o700))
	require.NoError(t, state.Save(root, id))
}
