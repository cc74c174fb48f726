package point

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkAppend(t *testing.T) {
	c := NewChunk([]string{"x", "y"}, 4)
	require.NoError(t, c.Append(1, 2))
	require.NoError(t, c.Append(3, 4))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []float64{1, 3}, c.Column("x"))
	assert.Equal(t, []float64{2, 4}, c.Column("y"))

	assert.Error(t, c.Append(5), "wrong arity")
}

func TestChunkRename(t *testing.T) {
	c := NewChunk([]string{"lon", "lat"}, 1)
	require.NoError(t, c.Append(15.0, 69.0))

	c.Rename("lon", "longitude")
	assert.Equal(t, []string{"longitude", "lat"}, c.Fields())
	assert.Equal(t, []float64{15.0}, c.Column("longitude"))
	assert.Nil(t, c.Column("lon"))

	c.Rename("absent", "other")
	assert.Equal(t, []string{"longitude", "lat"}, c.Fields())
}

func TestChunkDrop(t *testing.T) {
	c := NewChunk([]string{"x", "y", "noise"}, 1)
	require.NoError(t, c.Append(1, 2, 3))

	c.Drop("noise")
	assert.Equal(t, []string{"x", "y"}, c.Fields())
	assert.Nil(t, c.Column("noise"))
	assert.Equal(t, 1, c.Len())
}

func TestChunkSetColumnAndReset(t *testing.T) {
	c := NewChunk([]string{"x"}, 2)
	require.NoError(t, c.Append(1))

	c.SetColumn("derived", []float64{9})
	assert.Equal(t, []string{"x", "derived"}, c.Fields())

	c.Reset()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Column("x"))
}
