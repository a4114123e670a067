package metainfo

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"
)

func encodeInfo(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := bencode.EncodeBytes(v)
	require.NoError(t, err)
	return b
}

func TestNewInfoSingleFile(t *testing.T) {
	raw := encodeInfo(t, map[string]interface{}{
		"name":         "file.bin",
		"piece length": int64(15),
		"pieces":       string(make([]byte, 40)),
		"length":       int64(30),
	})
	info, err := NewInfo(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.NumPieces)
	assert.Equal(t, int64(30), info.GetSize())
	assert.False(t, info.Multi())
	assert.Equal(t, []string{"file.bin"}, info.FilePaths())
}

func TestNewInfoRejectsBadPiecesLength(t *testing.T) {
	raw := encodeInfo(t, map[string]interface{}{
		"name":         "x",
		"piece length": int64(15),
		"pieces":       "short",
		"length":       int64(1),
	})
	_, err := NewInfo(raw)
	require.Error(t, err)
}

func TestPieceLenTrimsFinalPiece(t *testing.T) {
	raw := encodeInfo(t, map[string]interface{}{
		"name":         "f",
		"piece length": int64(16),
		"pieces":       string(make([]byte, 40)),
		"length":       int64(20),
	})
	info, err := NewInfo(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(16), info.PieceLen(0))
	assert.Equal(t, int64(4), info.PieceLen(1))
}

func TestVerifyHash(t *testing.T) {
	data := []byte("hello info dict")
	want := sha1.Sum(data)
	assert.True(t, VerifyHash(data, want))
	want[0] ^= 0xff
	assert.False(t, VerifyHash(data, want))
}
