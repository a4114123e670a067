// Package trackermanager builds and caches Tracker clients by URL so every
// torrent that shares a tracker URL uses the same client value. The UDP
// client still opens a new socket and repeats the connect exchange on
// every announce.
package trackermanager

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/nimbus-bt/nimbus/internal/tracker"
	"github.com/nimbus-bt/nimbus/internal/tracker/httptracker"
	"github.com/nimbus-bt/nimbus/internal/tracker/udptracker"
)

// Manager hands out Tracker clients for announce URLs, one per distinct URL.
type Manager struct {
	mu       sync.Mutex
	trackers map[string]tracker.Tracker
}

// New creates an empty manager.
func New() *Manager {
	return &Manager{trackers: make(map[string]tracker.Tracker)}
}

// Get returns the Tracker client for rawURL, constructing and caching it on
// first use based on the URL scheme.
func (m *Manager) Get(rawURL string) (tracker.Tracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.trackers[rawURL]; ok {
		return t, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	var t tracker.Tracker
	switch u.Scheme {
	case "http", "https":
		t = httptracker.New(rawURL)
	case "udp", "udp4", "udp6":
		t = udptracker.New(rawURL, u.Host)
	default:
		return nil, fmt.Errorf("trackermanager: unsupported scheme %q", u.Scheme)
	}
	m.trackers[rawURL] = t
	return t, nil
}
