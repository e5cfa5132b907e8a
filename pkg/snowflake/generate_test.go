package snowflake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeID(t *testing.T) {
	id, err := nodeID(3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2<<5|3), id)

	_, err = nodeID(32, 0)
	assert.Error(t, err)
	_, err = nodeID(0, -1)
	assert.Error(t, err)
}

func TestNextIDIsMonotonic(t *testing.T) {
	require.NoError(t, Init(1, 1))

	prev := MustNextID()
	for i := 0; i < 100; i++ {
		next, err := NextID()
		require.NoError(t, err)
		assert.Greater(t, next, prev)
		prev = next
	}
}
