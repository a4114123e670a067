package trackermanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCachesByURL(t *testing.T) {
	m := New()
	a, err := m.Get("http://tracker.example.com/announce")
	require.NoError(t, err)
	b, err := m.Get("http://tracker.example.com/announce")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestGetRejectsUnsupportedScheme(t *testing.T) {
	m := New()
	_, err := m.Get("ws://tracker.example.com/announce")
	assert.Error(t, err)
}

func TestGetBuildsUDPTracker(t *testing.T) {
	m := New()
	tr, err := m.Get("udp://tracker.example.com:80/announce")
	require.NoError(t, err)
	assert.Equal(t, "udp://tracker.example.com:80/announce", tr.URL())
}
