package oci

import (
	"os"
	"testing"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSaveAndLoad(t *testing.T) {
	root := t.TempDir()
	id := "c1"
	require.NoError(t, os.MkdirAll(Dir(root, id), 0o700))

	want := &ContainerState{
		State: specs.State{
			Version: SpecVersion,
			ID:      id,
			Status:  specs.StateCreated,
			Pid:     4242,
			Bundle:  "/bundles/c1",
		},
		Created: time.Now().Truncate(time.Second),
		Rootfs:  "/bundles/c1/rootfs",
	}

	require.NoError(t, want.Save(root, id))

	got, err := LoadState(root, id)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Pid, got.Pid)
	assert.Equal(t, want.Rootfs, got.Rootfs)
	assert.True(t, want.Created.Equal(got.Created))
}

func TestLoadStateMissing(t *testing.T) {
	root := t.TempDir()
	_, err := LoadState(root, "does-not-exist")
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	root := t.TempDir()
	assert.False(t, Exists(root, "c1"))
	require.NoError(t, os.MkdirAll(Dir(root, "c1"), 0o700))
	assert.True(t, Exists(root, "c1"))
}
