package piecewriter

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

func TestWriteFlushesOnHashMatch(t *testing.T) {
	data := []byte("piece-data!")
	hash := sha1.Sum(data)
	info := testInfo(int64(len(data)), hash[:], int64(len(data)))
	st := &memStorage{data: make([]byte, len(data))}

	resultC := make(chan Result, 1)
	w := New(info, st, resultC, 1)
	w.Write(Request{Index: 0, Data: data})

	res := <-resultC
	require.NoError(t, res.Error)
	assert.True(t, res.Ok)
	assert.Equal(t, data, st.data)
}

func TestWriteRejectsHashMismatch(t *testing.T) {
	hash := sha1.Sum([]byte("expected"))
	info := testInfo(8, hash[:], 8)
	st := &memStorage{data: make([]byte, 8)}

	resultC := make(chan Result, 1)
	w := New(info, st, resultC, 1)
	w.Write(Request{Index: 0, Data: []byte("mismatch")})

	res := <-resultC
	assert.False(t, res.Ok)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, st.data)
}
