package rpc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/logger"
)

func TestClientServerRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln, func(req Request) Response {
		if req.Command != CommandListTorrents {
			return Response{Error: "unexpected command"}
		}
		return Response{Payload: []byte("ok")}
	}, logger.New("rpc-test"))
	go srv.Serve()
	defer srv.Close()

	c, err := Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Call(Request{Command: CommandListTorrents})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), resp.Payload)
}

func TestClientSurfacesHandlerError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln, func(req Request) Response {
		return Response{Error: "torrent not found"}
	}, logger.New("rpc-test"))
	go srv.Serve()
	defer srv.Close()

	c, err := Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Call(Request{Command: CommandRemoveTorrent, InfoHash: "deadbeef"})
	assert.Error(t, err)
}
