package magnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasic(t *testing.T) {
	uri := "magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567&dn=file.bin" +
		"&tr=udp%3A%2F%2Ftracker.example.com%3A1337%2Fannounce"
	m, err := Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "file.bin", m.Name)
	require.Len(t, m.Trackers, 1)
	assert.Equal(t, "udp://tracker.example.com:1337/announce", m.Trackers[0])
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", m.String())
}

func TestParseRejectsShortHash(t *testing.T) {
	_, err := Parse("magnet:?xt=urn:btih:deadbeef")
	require.Error(t, err)
}

func TestParseRejectsMissingHash(t *testing.T) {
	_, err := Parse("magnet:?dn=file.bin")
	require.Error(t, err)
}

func TestParseRejectsNonMagnetScheme(t *testing.T) {
	_, err := Parse("http://example.com")
	require.Error(t, err)
}
