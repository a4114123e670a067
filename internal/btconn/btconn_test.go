package btconn

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialAcceptHandshake(t *testing.T) {
	var infoHash, dialerID, accepterID [20]byte
	copy(infoHash[:], "0123456789abcdefghij")
	copy(dialerID[:], "-NB0001-dialerdialer")
	copy(accepterID[:], "-NB0001-accepteracce")

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	type result struct {
		hash [20]byte
		err  error
	}
	acceptDone := make(chan result, 1)
	go func() {
		_, _, hash, err := Accept(server, time.Second, accepterID, nil, func(h [20]byte) bool {
			return h == infoHash
		})
		acceptDone <- result{hash, err}
	}()

	_, remote, err := Dial(client, time.Second, infoHash, dialerID, nil)
	require.NoError(t, err)
	assert.Equal(t, accepterID, remote.PeerID)

	r := <-acceptDone
	require.NoError(t, r.err)
	assert.Equal(t, infoHash, r.hash)
}

func TestAcceptRejectsUnknownInfoHash(t *testing.T) {
	var infoHash, dialerID, accepterID [20]byte
	copy(infoHash[:], "0123456789abcdefghij")
	copy(dialerID[:], "-NB0001-dialerdialer")
	copy(accepterID[:], "-NB0001-accepteracce")

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	acceptErr := make(chan error, 1)
	go func() {
		_, _, _, err := Accept(server, time.Second, accepterID, nil, func(h [20]byte) bool { return false })
		acceptErr <- err
	}()

	_, _, err := Dial(client, time.Second, infoHash, dialerID, nil)
	assert.Error(t, err)
	assert.Error(t, <-acceptErr)
}
