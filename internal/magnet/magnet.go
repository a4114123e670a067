// Package magnet parses "magnet:?xt=urn:btih:...&dn=...&tr=..." URIs into
// the info hash, display name and tracker list the Torrent coordinator needs
// to start a metadata-only download.
package magnet

import (
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
)

// Magnet is a parsed magnet URI.
type Magnet struct {
	InfoHash [20]byte
	Name     string
	Trackers []string
}

var (
	errNotMagnet  = errors.New("magnet: not a magnet: URI")
	errNoHash     = errors.New("magnet: missing xt=urn:btih: parameter")
	errBadHashLen = errors.New("magnet: info hash must be 40 hex chars")
)

// Parse decodes a magnet URI of the form
// magnet:?xt=urn:btih:<hex40>&dn=<name>&tr=<url>[&tr=...].
func Parse(uri string) (*Magnet, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "magnet" {
		return nil, errNotMagnet
	}
	q := u.Query()

	var hashHex string
	for _, xt := range q["xt"] {
		const prefix = "urn:btih:"
		if strings.HasPrefix(xt, prefix) {
			hashHex = xt[len(prefix):]
			break
		}
	}
	if hashHex == "" {
		return nil, errNoHash
	}
	if len(hashHex) != 40 {
		return nil, errBadHashLen
	}
	raw, err := hex.DecodeString(hashHex)
	if err != nil {
		return nil, err
	}

	m := &Magnet{
		Name:     q.Get("dn"),
		Trackers: append([]string(nil), q["tr"]...),
	}
	copy(m.InfoHash[:], raw)
	return m, nil
}

// String renders the canonical hex form of the info hash.
func (m *Magnet) String() string {
	return hex.EncodeToString(m.InfoHash[:])
}
