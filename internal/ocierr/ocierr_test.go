package ocierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(MountError, errors.New("no such device"), "mounting %s", "/dev/sda1")
	assert.Equal(t, "MountError: mounting /dev/sda1: no such device", err.Error())

	bare := New(SocketError, nil, "closing listener")
	assert.Equal(t, "SocketError: closing listener: <nil>", bare.Error())
}

func TestKindOf(t *testing.T) {
	err := New(CapabilityError, nil, "dropping bounding set")
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, CapabilityError, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsMatchesByKindOnly(t *testing.T) {
	a := New(HookError, errors.New("exit 1"), "running prestart hook")
	assert.True(t, errors.Is(a, Sentinel(HookError)))
	assert.False(t, errors.Is(a, Sentinel(MountError)))
}
