package linux

import (
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestCloneFlags(t *testing.T) {
	namespaces := []specs.LinuxNamespace{
		{Type: specs.PIDNamespace},
		{Type: specs.NetworkNamespace},
		{Type: specs.MountNamespace},
		// A namespace with a Path is joined later via setns, not cloned.
		{Type: specs.UTSNamespace, Path: "/proc/1/ns/uts"},
	}

	flags, err := CloneFlags(namespaces)
	require.NoError(t, err)
	assert.Equal(t, unix.CLONE_NEWPID|unix.CLONE_NEWNET|unix.CLONE_NEWNS, int(flags))
}

func TestCloneFlagsUnknownType(t *testing.T) {
	_, err := CloneFlags([]specs.LinuxNamespace{{Type: "bogus"}})
	assert.Error(t, err)
}

func TestValidateUnique(t *testing.T) {
	assert.NoError(t, ValidateUnique([]specs.LinuxNamespace{
		{Type: specs.PIDNamespace},
		{Type: specs.NetworkNamespace},
	}))

	assert.Error(t, ValidateUnique([]specs.LinuxNamespace{
		{Type: specs.PIDNamespace},
		{Type: specs.PIDNamespace, Path: "/proc/1/ns/pid"},
	}))
}
