// Package metainfo supports reading .torrent files and reconstructing the
// info dictionary from BEP-9 metadata-exchange pieces.
package metainfo

import (
	"errors"
	"io"

	"github.com/zeebo/bencode"
)

// MetaInfo is the top-level dictionary of a .torrent file.
type MetaInfo struct {
	Info         *Info              `bencode:"-"`
	RawInfo      bencode.RawMessage `bencode:"info"`
	Announce     string             `bencode:"announce"`
	AnnounceList [][]string         `bencode:"announce-list"`
	CreationDate int64              `bencode:"creation date"`
	Comment      string             `bencode:"comment"`
	CreatedBy    string             `bencode:"created by"`
}

// New decodes a torrent file from a bencoded stream.
func New(r io.Reader) (*MetaInfo, error) {
	var mi MetaInfo
	if err := bencode.NewDecoder(r).Decode(&mi); err != nil {
		return nil, err
	}
	if len(mi.RawInfo) == 0 {
		return nil, errors.New("metainfo: no info dict in torrent file")
	}
	info, err := NewInfo(mi.RawInfo)
	if err != nil {
		return nil, err
	}
	mi.Info = info
	return &mi, nil
}

// GetTrackers flattens Announce and AnnounceList into a single, order
// preserving, deduplicated tracker URL list.
func (mi *MetaInfo) GetTrackers() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	add(mi.Announce)
	for _, tier := range mi.AnnounceList {
		for _, u := range tier {
			add(u)
		}
	}
	return out
}
