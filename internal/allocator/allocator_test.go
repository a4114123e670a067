package allocator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/metainfo"
)

func TestNewAllocatesSingleFile(t *testing.T) {
	dir := t.TempDir()
	info := &metainfo.Info{Name: "movie.mp4", Length: 1024, PieceLength: 256, NumPieces: 4}

	resultC := make(chan Result, 1)
	New(dir, info, nil, resultC)
	res := <-resultC
	require.NoError(t, res.Error)
	require.NotNil(t, res.Storage)
	defer res.Storage.Close()

	fi, err := os.Stat(filepath.Join(dir, "movie.mp4"))
	require.NoError(t, err)
	assert.EqualValues(t, 1024, fi.Size())
}

func TestNewAllocatesMultiFile(t *testing.T) {
	dir := t.TempDir()
	info := &metainfo.Info{
		Name:        "pack",
		PieceLength: 16,
		NumPieces:   2,
		Files: []metainfo.File{
			{Path: []string{"a.txt"}, Length: 10},
			{Path: []string{"sub", "b.txt"}, Length: 22, CumStart: 10},
		},
	}

	resultC := make(chan Result, 1)
	New(dir, info, nil, resultC)
	res := <-resultC
	require.NoError(t, res.Error)
	defer res.Storage.Close()

	fiA, err := os.Stat(filepath.Join(dir, "pack", "a.txt"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, fiA.Size())

	fiB, err := os.Stat(filepath.Join(dir, "pack", "sub", "b.txt"))
	require.NoError(t, err)
	assert.EqualValues(t, 22, fiB.Size())
}

func TestFileCount(t *testing.T) {
	single := &metainfo.Info{Length: 10}
	assert.Equal(t, 1, fileCount(single))

	multi := &metainfo.Info{Files: []metainfo.File{{Length: 1}, {Length: 2}}}
	assert.Equal(t, 2, fileCount(multi))
}
