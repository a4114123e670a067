// Package httptracker implements the BEP-3 HTTP/HTTPS tracker announce
// protocol.
package httptracker

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jackpal/bencode-go"

	"github.com/nimbus-bt/nimbus/internal/tracker"
)

// Tracker announces over HTTP(S) GET requests, per BEP-3.
type Tracker struct {
	rawURL string
	client *http.Client
}

// New builds an HTTP tracker client for rawURL.
func New(rawURL string) *Tracker {
	return &Tracker{
		rawURL: rawURL,
		client: &http.Client{Timeout: tracker.DefaultTimeout},
	}
}

func (t *Tracker) URL() string { return t.rawURL }

type bencodeResponse struct {
	FailureReason string `bencode:"failure reason"`
	Interval      int32  `bencode:"interval"`
	Complete      int32  `bencode:"complete"`
	Incomplete    int32  `bencode:"incomplete"`
	Peers         string `bencode:"peers"`
}

// Announce performs one HTTP GET announce and parses the compact peer list.
func (t *Tracker) Announce(ctx context.Context, tr tracker.Torrent) (*tracker.Response, error) {
	u, err := url.Parse(t.rawURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("info_hash", string(tr.InfoHash[:]))
	q.Set("peer_id", string(tr.PeerID[:]))
	q.Set("port", strconv.Itoa(int(tr.Port)))
	q.Set("uploaded", strconv.FormatInt(tr.BytesUploaded, 10))
	q.Set("downloaded", strconv.FormatInt(tr.BytesDownloaded, 10))
	q.Set("left", strconv.FormatInt(tr.BytesLeft, 10))
	q.Set("compact", "1")
	if tr.NumWant > 0 {
		q.Set("numwant", strconv.Itoa(int(tr.NumWant)))
	}
	if ev := eventString(tr.Event); ev != "" {
		q.Set("event", ev)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var br bencodeResponse
	if err := bencode.Unmarshal(resp.Body, &br); err != nil {
		return nil, fmt.Errorf("httptracker: decode response: %w", err)
	}
	if br.FailureReason != "" {
		return nil, fmt.Errorf("httptracker: %s", br.FailureReason)
	}

	peers, err := decodeCompactPeers([]byte(br.Peers))
	if err != nil {
		return nil, err
	}
	return &tracker.Response{
		Interval: br.Interval,
		Seeders:  br.Complete,
		Leechers: br.Incomplete,
		Peers:    peers,
	}, nil
}

func eventString(e tracker.Event) string {
	switch e {
	case tracker.EventStarted:
		return "started"
	case tracker.EventStopped:
		return "stopped"
	case tracker.EventCompleted:
		return "completed"
	default:
		return ""
	}
}

func decodeCompactPeers(b []byte) ([]*net.TCPAddr, error) {
	if len(b)%6 != 0 {
		return nil, fmt.Errorf("httptracker: compact peer list length %d not a multiple of 6", len(b))
	}
	addrs := make([]*net.TCPAddr, 0, len(b)/6)
	for i := 0; i < len(b); i += 6 {
		ip := net.IP(b[i : i+4])
		port := int(b[i+4])<<8 | int(b[i+5])
		addrs = append(addrs, &net.TCPAddr{IP: ip, Port: port})
	}
	return addrs, nil
}
