package boltdbresumer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-bt/nimbus/internal/resumer"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.db")
	r, err := New(path)
	require.NoError(t, err)
	defer r.Close()

	spec := resumer.Spec{Name: "ubuntu.iso", Port: 6881, Trackers: []string{"udp://tracker:80"}}
	require.NoError(t, r.Write("deadbeef", spec))

	got, err := r.Read("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, spec.Name, got.Name)
	assert.Equal(t, spec.Trackers, got.Trackers)
}

func TestReadAllAndDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.db")
	r, err := New(path)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Write("a", resumer.Spec{Name: "a"}))
	require.NoError(t, r.Write("b", resumer.Spec{Name: "b"}))

	all, err := r.ReadAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, r.Delete("a"))
	all, err = r.ReadAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
