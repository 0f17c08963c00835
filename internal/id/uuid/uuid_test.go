package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRawIDIsVersion7(t *testing.T) {
	t.Parallel()

	id, err := New().NewRawID()
	require.NoError(t, err)
	assert.EqualValues(t, 7, id.Version())
}

func TestNewRawIDSortsByCreation(t *testing.T) {
	t.Parallel()

	gen := New()
	first, err := gen.NewRawID()
	require.NoError(t, err)
	second, err := gen.NewRawID()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Less(t, first.String(), second.String())
}
