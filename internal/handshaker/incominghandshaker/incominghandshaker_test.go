package incominghandshaker

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/btconn"
)

func TestIncomingHandshakeSuccess(t *testing.T) {
	var infoHash, ourID, theirID [20]byte
	copy(infoHash[:], "0123456789abcdefghij")
	copy(ourID[:], "-NB0001-accepteracce")
	copy(theirID[:], "-NB0001-dialerdialer")

	client, server := net.Pipe()
	defer client.Close()

	go func() {
		_, _, err := btconn.Dial(client, time.Second, infoHash, theirID, nil)
		assert.NoError(t, err)
	}()

	resultC := make(chan Result, 1)
	New(server, ourID, nil, func(h [20]byte) bool { return h == infoHash }, time.Second, resultC)

	res := <-resultC
	require.NoError(t, res.Error)
	assert.Equal(t, infoHash, res.InfoHash)
	assert.Equal(t, theirID, res.PeerID)
}
