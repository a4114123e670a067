package disk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/metainfo"
	"github.com/nimbus-bt/nimbus/internal/piecewriter"
	"github.com/nimbus-bt/nimbus/internal/storage/filestorage"
)

func TestReadBlockAndWritePiece(t *testing.T) {
	dir := t.TempDir()
	data := []byte("0123456789abcdefghij") // 20 bytes, two 10-byte pieces
	info := &metainfo.Info{Name: "f.bin", Length: int64(len(data)), PieceLength: 10, NumPieces: 2}
	info.Pieces = make([]byte, 40)

	fs, err := filestorage.Open(dir, info)
	require.NoError(t, err)
	_, err = fs.WriteAt(data, 0)
	require.NoError(t, err)

	resultC := make(chan piecewriter.Result, 4)
	d := New(info, fs, 1<<20, resultC, 4)
	defer d.Close()

	block, err := d.ReadBlock(0, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(block))

	// A hash mismatch must not be written and must be reported as !Ok.
	d.WritePiece(1, []byte("wrong-data"))
	select {
	case res := <-resultC:
		assert.Equal(t, 1, res.Index)
		assert.False(t, res.Ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write result")
	}
}
