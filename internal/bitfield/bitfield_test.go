package bitfield

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetIdempotent(t *testing.T) {
	bf := New(8)
	bf.Set(3)
	first := bf.Bytes()
	bf.Set(3)
	assert.Equal(t, first, bf.Bytes())
	assert.True(t, bf.Test(3))
}

func TestTrailingSpareBitsRejected(t *testing.T) {
	_, err := NewBytes([]byte{0xff}, 5)
	require.Error(t, err)

	bf, err := NewBytes([]byte{0xf8}, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, bf.Count())
}

func TestAllAndCount(t *testing.T) {
	bf := New(3)
	assert.False(t, bf.All())
	bf.Set(0)
	bf.Set(1)
	bf.Set(2)
	assert.True(t, bf.All())
	assert.Equal(t, 3, bf.Count())
}

func TestCloneIsIndependent(t *testing.T) {
	bf := New(4)
	clone := bf.Clone()
	bf.Set(0)
	assert.False(t, clone.Test(0))
}
