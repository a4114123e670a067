package piecepicker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/bitfield"
)

func fullBitfield(t *testing.T, n int) *bitfield.Bitfield {
	t.Helper()
	bf := bitfield.New(n)
	for i := 0; i < n; i++ {
		bf.Set(i)
	}
	return bf
}

func TestRandomFirstPhaseStaysWithinPeerHave(t *testing.T) {
	picker := New(10)
	bf := bitfield.New(10)
	bf.Set(2)
	bf.Set(5)

	idx, ok := picker.Next(bf, false)
	require.True(t, ok)
	assert.Contains(t, []int{2, 5}, idx)
}

func TestRarestFirstPrefersLeastAvailable(t *testing.T) {
	picker := New(3)
	bf := fullBitfield(t, 3)

	// Exhaust the random-first phase first.
	for i := 0; i < RandomFirstN; i++ {
		picker.MarkDone(0)
	}

	picker.HandleHave(1)
	picker.HandleHave(1)
	picker.HandleHave(2)

	idx, ok := picker.Next(bf, false)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestDonePiecesAreNeverPicked(t *testing.T) {
	picker := New(2)
	bf := fullBitfield(t, 2)
	for i := 0; i < RandomFirstN; i++ {
		picker.MarkDone(0)
	}
	idx, ok := picker.Next(bf, false)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	picker.MarkDone(1)
	_, ok = picker.Next(bf, false)
	assert.False(t, ok)
}

func TestEndgameAllowsAlreadyRequestedPiece(t *testing.T) {
	picker := New(1)
	bf := fullBitfield(t, 1)
	picker.MarkRequested(0)

	_, ok := picker.Next(bf, false)
	assert.False(t, ok)

	idx, ok := picker.Next(bf, true)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestHandlePeerGoneDecrementsAvailability(t *testing.T) {
	picker := New(2)
	bf := fullBitfield(t, 2)
	picker.HandleBitfield(bf)
	picker.HandlePeerGone(bf)

	idx, ok := picker.Next(bf, false)
	require.True(t, ok)
	assert.Contains(t, []int{0, 1}, idx)
}
