package httptracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackpal/bencode-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/tracker"
)

func TestAnnounceParsesCompactPeers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("compact"))
		peers := string([]byte{127, 0, 0, 1, 0x1A, 0xE1})
		_ = bencode.Marshal(w, map[string]interface{}{
			"interval":   int64(1800),
			"complete":   int64(3),
			"incomplete": int64(1),
			"peers":      peers,
		})
	}))
	defer srv.Close()

	tr := New(srv.URL)
	resp, err := tr.Announce(context.Background(), tracker.Torrent{Port: 6881, NumWant: 50})
	require.NoError(t, err)
	require.Len(t, resp.Peers, 1)
	assert.Equal(t, "127.0.0.1", resp.Peers[0].IP.String())
	assert.Equal(t, 0x1AE1, resp.Peers[0].Port)
	assert.EqualValues(t, 1800, resp.Interval)
}

func TestAnnounceReturnsFailureReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = bencode.Marshal(w, map[string]interface{}{"failure reason": "unregistered torrent"})
	}))
	defer srv.Close()

	tr := New(srv.URL)
	_, err := tr.Announce(context.Background(), tracker.Torrent{})
	assert.Error(t, err)
}
