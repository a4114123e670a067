package outgoinghandshaker

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/btconn"
)

type fakeAddr struct{ network, addr string }

func (a fakeAddr) Network() string { return a.network }
func (a fakeAddr) String() string  { return a.addr }

func TestOutgoingHandshakeSuccess(t *testing.T) {
	var infoHash, ourID, theirID [20]byte
	copy(infoHash[:], "0123456789abcdefghij")
	copy(ourID[:], "-NB0001-dialerdialer")
	copy(theirID[:], "-NB0001-accepteracce")

	client, server := net.Pipe()
	defer server.Close()

	go func() {
		_, _, _, err := btconn.Accept(server, time.Second, theirID, nil, func(h [20]byte) bool { return h == infoHash })
		assert.NoError(t, err)
	}()

	resultC := make(chan Result, 1)
	h := &OutgoingHandshaker{
		Addr:       fakeAddr{"tcp", "peer:1"},
		resultC:    resultC,
		closeC:     make(chan struct{}),
		dial:       func(string, string) (net.Conn, error) { return client, nil },
		timeout:    time.Second,
		infoHash:   infoHash,
		ourID:      ourID,
	}
	go h.run()

	res := <-resultC
	require.NoError(t, res.Error)
	assert.Equal(t, theirID, res.PeerID)
}
