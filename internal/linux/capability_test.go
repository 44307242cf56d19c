package linux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/gocapability/capability"
)

func TestCapFromString(t *testing.T) {
	c, err := capFromString("CAP_NET_RAW")
	require.NoError(t, err)
	assert.Equal(t, capability.CAP_NET_RAW, c)

	// Case-insensitive match, and the CAP_ prefix is optional.
	c, err = capFromString("net_raw")
	require.NoError(t, err)
	assert.Equal(t, capability.CAP_NET_RAW, c)

	_, err = capFromString("CAP_NOT_A_REAL_CAP")
	assert.Error(t, err)
}

func TestToCaps(t *testing.T) {
	caps, err := toCaps([]string{"CAP_CHOWN", "CAP_KILL"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []capability.Cap{capability.CAP_CHOWN, capability.CAP_KILL}, caps)

	_, err = toCaps([]string{"CAP_NOT_A_REAL_CAP"})
	assert.Error(t, err)
}
