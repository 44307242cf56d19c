package oci

import (
	"os"
	"path/filepath"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, root string) {
	t.Helper()
	data := `{
		"ociVersion": "1.0.2",
		"root": {"path": "rootfs"},
		"process": {"args": ["/bin/sh"]}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(data), 0o644))
}

func TestLoadConfig(t *testing.T) {
	bundle := t.TempDir()
	writeBundle(t, bundle)

	spec, err := LoadConfig(bundle)
	require.NoError(t, err)
	assert.Equal(t, "rootfs", spec.Root.Path)
	assert.Equal(t, []string{"/bin/sh"}, spec.Process.Args)
}

func TestLoadConfigMissingRoot(t *testing.T) {
	bundle := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bundle, ConfigFileName), []byte(`{"ociVersion":"1.0.2"}`), 0o644))

	_, err := LoadConfig(bundle)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	bundle := t.TempDir()
	_, err := LoadConfig(bundle)
	assert.Error(t, err)
}

func TestRootfsPath(t *testing.T) {
	spec := &specs.Spec{Root: &specs.Root{Path: "rootfs"}}
	assert.Equal(t, filepath.Join("/bundle", "rootfs"), RootfsPath("/bundle", spec))

	abs := &specs.Spec{Root: &specs.Root{Path: "/var/lib/containers/c1/rootfs"}}
	assert.Equal(t, "/var/lib/containers/c1/rootfs", RootfsPath("/bundle", abs))
}
