// Package peerid generates the process-wide PeerId once, per BEP 20.
package peerid

import (
	"crypto/rand"
)

// Prefix identifies this client implementation on the wire (BEP 20).
var Prefix = []byte("-NB0001-")

// Generate returns a fresh 20-byte peer id: the client prefix followed by
// random bytes. Called once at process init and threaded explicitly from
// there on; this package holds no singleton.
func Generate() ([20]byte, error) {
	var id [20]byte
	copy(id[:], Prefix)
	_, err := rand.Read(id[len(Prefix):])
	return id, err
}
