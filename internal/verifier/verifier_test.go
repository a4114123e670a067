package verifier

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/metainfo"
)

type memStorage struct{ data []byte }

func (m *memStorage) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, m.data[off:]), nil
}
func (m *memStorage) WriteAt(p []byte, off int64) (int, error) {
	return copy(m.data[off:], p), nil
}
func (m *memStorage) Close() error { return nil }

func testInfo(pieceLen int64, pieces []byte, length int64) *metainfo.Info {
	return &metainfo.Info{PieceLength: pieceLen, Pieces: pieces, Length: length, NumPieces: int64(len(pieces) / 20)}
}

func TestVerifierMarksMatchingPieces(t *testing.T) {
	good := []byte("good")
	bad := []byte("????")
	goodHash := sha1.Sum(good)
	wrongHash := sha1.Sum([]byte("nope"))

	pieces := append(append([]byte{}, goodHash[:]...), wrongHash[:]...)
	info := testInfo(4, pieces, 8)
	st := &memStorage{data: append(append([]byte{}, good...), bad...)}

	resultC := make(chan Result, 1)
	New(info, st, nil, resultC)
	res := <-resultC
	require.NoError(t, res.Error)
	assert.True(t, res.Bitfield.Test(0))
	assert.False(t, res.Bitfield.Test(1))
}

func TestVerifyOneHashMismatch(t *testing.T) {
	hash := sha1.Sum([]byte("right"))
	info := testInfo(5, hash[:], 5)
	assert.True(t, VerifyOne(info, 0, []byte("right")))
	assert.False(t, VerifyOne(info, 0, []byte("wrong")))
}
