package infodownloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
)

func TestGotBlockAssemblesAllPieces(t *testing.T) {
	d := New(nil, BlockSize+10)
	require.Len(t, d.have, 2)

	done, err := d.GotBlock(peerprotocol.ExtensionMetadataMessage{Piece: 0, Data: make([]byte, BlockSize)})
	require.NoError(t, err)
	assert.False(t, done)

	done, err = d.GotBlock(peerprotocol.ExtensionMetadataMessage{Piece: 1, Data: make([]byte, 10)})
	require.NoError(t, err)
	assert.True(t, done)
	assert.Len(t, d.Bytes(), BlockSize+10)
}

func TestGotBlockRejectsOutOfRangePiece(t *testing.T) {
	d := New(nil, BlockSize)
	_, err := d.GotBlock(peerprotocol.ExtensionMetadataMessage{Piece: 5, Data: make([]byte, 1)})
	assert.Error(t, err)
}
