package peer

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/logger"
	"github.com/nimbus-bt/nimbus/internal/peerconn"
	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
)

func newPeerPair(t *testing.T) (*Peer, *peerconn.Conn) {
	t.Helper()
	client, server := net.Pipe()
	pc := peerconn.New(client, 8)
	p := New(pc, [20]byte{1}, client.RemoteAddr(), 10, logger.New("test"))
	remote := peerconn.New(server, 8)
	t.Cleanup(func() { p.Close(); remote.Close() })
	return p, remote
}

func TestHaveUpdatesBitfield(t *testing.T) {
	p, remote := newPeerPair(t)
	events := make(chan Event, 8)
	go p.Run(events)

	require.NoError(t, remote.Send(peerprotocol.HaveMessage{Index: 3}))
	ev := <-events
	assert.Equal(t, EventHave, ev.Kind)
	assert.True(t, p.Bitfield.Test(3))
}

func TestChokeUnchokeState(t *testing.T) {
	p, remote := newPeerPair(t)
	events := make(chan Event, 8)
	go p.Run(events)

	require.NoError(t, remote.Send(peerprotocol.UnchokeMessage{}))
	ev := <-events
	assert.Equal(t, EventUnchoke, ev.Kind)
	assert.False(t, p.PeerChoking)

	require.NoError(t, remote.Send(peerprotocol.ChokeMessage{}))
	ev = <-events
	assert.Equal(t, EventChoke, ev.Kind)
	assert.True(t, p.PeerChoking)
}

func TestSendUnchokeIsIdempotent(t *testing.T) {
	p, remote := newPeerPair(t)
	events := make(chan Event, 8)
	go p.Run(events)

	require.NoError(t, p.SendUnchoke())
	assert.False(t, p.AmChoking)
	require.NoError(t, p.SendUnchoke())

	select {
	case m := <-remote.Messages:
		_, ok := m.(peerprotocol.UnchokeMessage)
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected one unchoke message")
	}
	select {
	case m := <-remote.Messages:
		t.Fatalf("unexpected second message %#v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPieceMessageUpdatesChokePeriodCounter(t *testing.T) {
	p, remote := newPeerPair(t)
	events := make(chan Event, 8)
	go p.Run(events)

	require.NoError(t, remote.Send(peerprotocol.PieceMessage{Index: 0, Begin: 0, Data: make([]byte, 100)}))
	ev := <-events
	assert.Equal(t, EventPiece, ev.Kind)
	assert.EqualValues(t, 100, p.BytesDownloadedInChokePeriod)

	p.ResetChokePeriodCounters()
	assert.Zero(t, p.BytesDownloadedInChokePeriod)
}
