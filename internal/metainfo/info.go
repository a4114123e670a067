package metainfo

import (
	"crypto/sha1"
	"errors"
	"path/filepath"

	"github.com/zeebo/bencode"
)

// File describes one file inside a multi-file torrent layout.
type File struct {
	Path     []string `bencode:"path"`
	Length   int64    `bencode:"length"`
	CumStart int64    `bencode:"-"`
}

// Info is the torrent's info dictionary: piece layout plus either a
// single-file or multi-file directory layout.
type Info struct {
	Name        string `bencode:"name"`
	PieceLength int64  `bencode:"piece length"`
	Pieces      []byte `bencode:"pieces"`
	Length      int64  `bencode:"length,omitempty"`
	Files       []File `bencode:"files,omitempty"`
	Private     int64  `bencode:"private,omitempty"`

	// Bytes holds the exact bencoded form this Info was parsed from, so its
	// SHA-1 can be recomputed for the InfoHash comparison.
	Bytes []byte `bencode:"-"`

	NumPieces int64 `bencode:"-"`
	InfoSize  uint32
}

var (
	ErrNoPieces       = errors.New("metainfo: info dict has no pieces")
	ErrBadPiecesLen   = errors.New("metainfo: pieces length not a multiple of 20")
	ErrNoLengthOrFile = errors.New("metainfo: info dict has neither length nor files")
)

// NewInfo decodes and validates a bencoded info dictionary, as received
// either from a .torrent file or reconstructed from peers via BEP-9.
func NewInfo(b []byte) (*Info, error) {
	var info Info
	if err := bencode.DecodeBytes(b, &info); err != nil {
		return nil, err
	}
	if len(info.Pieces) == 0 {
		return nil, ErrNoPieces
	}
	if len(info.Pieces)%20 != 0 {
		return nil, ErrBadPiecesLen
	}
	if info.Length == 0 && len(info.Files) == 0 {
		return nil, ErrNoLengthOrFile
	}
	info.NumPieces = int64(len(info.Pieces) / 20)
	info.Bytes = append([]byte(nil), b...)
	info.InfoSize = uint32(len(b))

	var cum int64
	for i := range info.Files {
		info.Files[i].CumStart = cum
		cum += info.Files[i].Length
	}
	return &info, nil
}

// PieceHash returns the expected SHA-1 hash of piece i.
func (info *Info) PieceHash(i int) [20]byte {
	var h [20]byte
	copy(h[:], info.Pieces[i*20:i*20+20])
	return h
}

// GetSize returns the total content size across all files.
func (info *Info) GetSize() int64 {
	if len(info.Files) > 0 {
		var sum int64
		for _, f := range info.Files {
			sum += f.Length
		}
		return sum
	}
	return info.Length
}

// PieceLen returns the length of piece i, accounting for the final,
// possibly-shorter piece.
func (info *Info) PieceLen(i int) int64 {
	if int64(i) == info.NumPieces-1 {
		rem := info.GetSize() % info.PieceLength
		if rem != 0 {
			return rem
		}
	}
	return info.PieceLength
}

// Multi reports whether this is a multi-file torrent.
func (info *Info) Multi() bool {
	return len(info.Files) > 0
}

// FilePaths returns every file path relative to Name, joined with the
// platform separator, for single- or multi-file layouts alike.
func (info *Info) FilePaths() []string {
	if !info.Multi() {
		return []string{info.Name}
	}
	paths := make([]string, len(info.Files))
	for i, f := range info.Files {
		paths[i] = filepath.Join(append([]string{info.Name}, f.Path...)...)
	}
	return paths
}

// VerifyHash reports whether the SHA-1 of the Info's exact bencoded bytes
// equals the expected info hash (the content-addressing identity from the
// magnet link or .torrent file).
func VerifyHash(infoBytes []byte, want [20]byte) bool {
	return sha1.Sum(infoBytes) == want
}
