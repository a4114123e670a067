package filestorage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/metainfo"
)

func TestSingleFileReadWrite(t *testing.T) {
	dir := t.TempDir()
	info := &metainfo.Info{Name: "content.bin", Length: 20, PieceLength: 10}

	fs, err := Open(dir, info)
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.WriteAt([]byte("hello world of bits!"[:20]), 0)
	require.NoError(t, err)

	got := make([]byte, 5)
	_, err = fs.ReadAt(got, 6)
	require.NoError(t, err)
	assert.Equal(t, "world", string(got))

	fi, err := os.Stat(filepath.Join(dir, "content.bin"))
	require.NoError(t, err)
	assert.EqualValues(t, 20, fi.Size())
}

func TestMultiFileWriteSpansBoundary(t *testing.T) {
	dir := t.TempDir()
	info := &metainfo.Info{
		Name:        "torrentdir",
		PieceLength: 10,
		Files: []metainfo.File{
			{Path: []string{"a.txt"}, Length: 5, CumStart: 0},
			{Path: []string{"b.txt"}, Length: 5, CumStart: 5},
		},
	}

	fs, err := Open(dir, info)
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.WriteAt([]byte("aaaabbbbb"), 1)
	require.NoError(t, err)

	got := make([]byte, 9)
	_, err = fs.ReadAt(got, 1)
	require.NoError(t, err)
	assert.Equal(t, "aaaabbbbb", string(got))

	a, err := os.ReadFile(filepath.Join(dir, "torrentdir", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 'a', 'a', 'a', 'a'}, a)
}

func TestOutOfBoundsRejected(t *testing.T) {
	dir := t.TempDir()
	info := &metainfo.Info{Name: "x.bin", Length: 10, PieceLength: 10}
	fs, err := Open(dir, info)
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.ReadAt(make([]byte, 5), 8)
	assert.Error(t, err)
}
