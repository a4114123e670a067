package piececache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/metainfo"
	"github.com/nimbus-bt/nimbus/internal/storage/filestorage"
)

func TestReadCachesAndEvicts(t *testing.T) {
	dir := t.TempDir()
	info := &metainfo.Info{Name: "f.bin", Length: 30, PieceLength: 10, NumPieces: 3}
	fs, err := filestorage.Open(dir, info)
	require.NoError(t, err)
	defer fs.Close()
	_, err = fs.WriteAt([]byte("0123456789abcdefghijABCDEFGHIJ"[:30]), 0)
	require.NoError(t, err)

	c := New(info, fs, 15) // room for ~1.5 pieces
	b0, err := c.Read(0)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(b0))

	_, err = c.Read(1)
	require.NoError(t, err)
	// Piece 0 should have been evicted to stay under maxBytes.
	_, stillCached := c.items[0]
	assert.False(t, stillCached)

	_, err = c.Read(2)
	require.NoError(t, err)
}

func TestInvalidateRemovesEntry(t *testing.T) {
	dir := t.TempDir()
	info := &metainfo.Info{Name: "f.bin", Length: 10, PieceLength: 10, NumPieces: 1}
	fs, err := filestorage.Open(dir, info)
	require.NoError(t, err)
	defer fs.Close()

	c := New(info, fs, 100)
	_, err = c.Read(0)
	require.NoError(t, err)

	c.Invalidate(0)
	_, ok := c.items[0]
	assert.False(t, ok)
}
