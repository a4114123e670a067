package session

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/logger"
	"github.com/nimbus-bt/nimbus/internal/peer"
	"github.com/nimbus-bt/nimbus/internal/peerconn"
)

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusConnectingTrackers:  "connecting_trackers",
		StatusDownloadingMetainfo: "downloading_metainfo",
		StatusDownloading:         "downloading",
		StatusSeeding:             "seeding",
		StatusError:               "error",
		Status(99):                "unknown",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}

func newTestTorrent(t *testing.T) *torrent {
	t.Helper()
	return &torrent{
		infoHash: [20]byte{1, 2, 3},
		name:     "test-torrent",
		cfg:      &DefaultConfig,
		log:      logger.New("test"),
		status:   StatusDownloading,
		peers:    make(map[string]*peer.Peer),
		strikes:  make(map[string]int),
		pieceOwner: make(map[int]*peer.Peer),
	}
}

func newTestPeer(t *testing.T) *peer.Peer {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	pc := peerconn.New(server, messagesCap)
	return peer.New(pc, [20]byte{9, 9, 9}, client.LocalAddr(), 10, logger.New("test"))
}

func TestSnapshotAggregatesPeerRates(t *testing.T) {
	tr := newTestTorrent(t)
	tr.bytesDownloaded = 100
	tr.bytesUploaded = 50

	p := newTestPeer(t)
	tr.peers[p.Addr.String()] = p

	snap := tr.snapshot()
	assert.Equal(t, "test-torrent", snap.Name)
	assert.Equal(t, "downloading", snap.Status)
	assert.EqualValues(t, 100, snap.Downloaded)
	assert.EqualValues(t, 50, snap.Uploaded)
	assert.Equal(t, p.DownloadRate(), snap.DownloadRate)
	assert.Equal(t, p.UploadRate(), snap.UploadRate)
}

func TestSnapshotReportsLastError(t *testing.T) {
	tr := newTestTorrent(t)
	tr.fail(errors.New("disk full"))

	snap := tr.snapshot()
	assert.Equal(t, "error", snap.Status)
	assert.Equal(t, "disk full", snap.Error)
}

func TestStrikePeerDropsAfterThreshold(t *testing.T) {
	tr := newTestTorrent(t)
	tr.cfg = &Config{IntegrityErrorStrikes: 2}

	p := newTestPeer(t)
	key := p.Addr.String()
	tr.peers[key] = p

	tr.strikePeer(p)
	require.Contains(t, tr.peers, key)
	assert.Equal(t, 1, tr.strikes[key])

	tr.strikePeer(p)
	assert.NotContains(t, tr.peers, key)
	assert.NotContains(t, tr.strikes, key)
}

func TestOurExtensionsSetsExtensionProtocolBit(t *testing.T) {
	tr := newTestTorrent(t)
	ext := tr.ourExtensions()
	assert.NotEqual(t, [8]byte{}, ext)
}
