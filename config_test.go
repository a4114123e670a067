package nimbus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig.PeerPort, c.PeerPort)
	assert.Equal(t, DefaultConfig.EndgameThreshold, c.EndgameThreshold)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nimbus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("peer_port: 51413\nunchoked_peers: 6\n"), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.EqualValues(t, 51413, c.PeerPort)
	assert.Equal(t, 6, c.UnchokedPeers)
	assert.Equal(t, DefaultConfig.EndgameThreshold, c.EndgameThreshold)
}
