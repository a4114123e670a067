package udptracker

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/tracker"
)

func fakeServer(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			action := int32(binary.BigEndian.Uint32(buf[8:12]))
			txID := buf[12:16]
			switch action {
			case actionConnect:
				resp := make([]byte, 16)
				binary.BigEndian.PutUint32(resp[0:4], uint32(actionConnect))
				copy(resp[4:8], txID)
				binary.BigEndian.PutUint64(resp[8:16], 12345)
				conn.WriteToUDP(resp, addr)
			case actionAnnounce:
				_ = n
				resp := make([]byte, 26)
				binary.BigEndian.PutUint32(resp[0:4], uint32(actionAnnounce))
				copy(resp[4:8], txID)
				binary.BigEndian.PutUint32(resp[8:12], 1800)
				binary.BigEndian.PutUint32(resp[12:16], 2)
				binary.BigEndian.PutUint32(resp[16:20], 5)
				copy(resp[20:24], net.IPv4(10, 0, 0, 1).To4())
				binary.BigEndian.PutUint16(resp[24:26], 6881)
				conn.WriteToUDP(resp, addr)
			}
		}
	}()
	return conn
}

func TestConnectAndAnnounce(t *testing.T) {
	srv := fakeServer(t)
	tr := New("udp://"+srv.LocalAddr().String(), srv.LocalAddr().String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := tr.Announce(ctx, tracker.Torrent{Port: 6881})
	require.NoError(t, err)
	assert.EqualValues(t, 1800, resp.Interval)
	assert.EqualValues(t, 5, resp.Seeders)
	require.Len(t, resp.Peers, 1)
	assert.Equal(t, "10.0.0.1", resp.Peers[0].IP.String())
}
