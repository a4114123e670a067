package peerprotocol

import (
	"errors"
	"fmt"
	"io"
)

const (
	protocolString = "BitTorrent protocol"
	pstrLen        = byte(len(protocolString))

	// HandshakeLen is the fixed wire length of a handshake message.
	HandshakeLen = 1 + len(protocolString) + 8 + 20 + 20
)

// ExtensionBitExtensionProtocol is the reserved-byte bit (BEP-10) announcing
// support for the id-20 Extended message dispatch.
const ExtensionBitExtensionProtocol = 43

// Handshake is the 68-byte message exchanged before any length-prefixed
// message framing begins.
type Handshake struct {
	Extensions [8]byte
	InfoHash   [20]byte
	PeerID     [20]byte
}

// NewHandshake builds a handshake advertising the extension protocol bit.
func NewHandshake(infoHash, peerID [20]byte) Handshake {
	h := Handshake{InfoHash: infoHash, PeerID: peerID}
	h.SetExtensionBit(ExtensionBitExtensionProtocol)
	return h
}

// SetExtensionBit sets one of the 64 reserved bits, numbered from the most
// significant bit of the first reserved byte (bit 0) to the least
// significant bit of the last (bit 63), matching the convention other
// clients use for these reserved bytes.
func (h *Handshake) SetExtensionBit(bit uint) {
	h.Extensions[bit/8] |= 1 << (7 - bit%8)
}

// HasExtensionBit reports whether the given reserved bit is set.
func (h Handshake) HasExtensionBit(bit uint) bool {
	return h.Extensions[bit/8]&(1<<(7-bit%8)) != 0
}

// WriteHandshake writes the 68-byte handshake message to w.
func WriteHandshake(w io.Writer, h Handshake) error {
	buf := make([]byte, 0, HandshakeLen)
	buf = append(buf, pstrLen)
	buf = append(buf, protocolString...)
	buf = append(buf, h.Extensions[:]...)
	buf = append(buf, h.InfoHash[:]...)
	buf = append(buf, h.PeerID[:]...)
	_, err := w.Write(buf)
	return err
}

// ReadHandshake reads and validates a 68-byte handshake message from r.
func ReadHandshake(r io.Reader) (Handshake, error) {
	var h Handshake
	var hdr [1]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return h, err
	}
	if hdr[0] != pstrLen {
		return h, fmt.Errorf("peerprotocol: unexpected pstrlen %d", hdr[0])
	}
	pstr := make([]byte, hdr[0])
	if _, err := io.ReadFull(r, pstr); err != nil {
		return h, err
	}
	if string(pstr) != protocolString {
		return h, errors.New("peerprotocol: unexpected protocol string")
	}
	if _, err := io.ReadFull(r, h.Extensions[:]); err != nil {
		return h, err
	}
	if _, err := io.ReadFull(r, h.InfoHash[:]); err != nil {
		return h, err
	}
	if _, err := io.ReadFull(r, h.PeerID[:]); err != nil {
		return h, err
	}
	return h, nil
}
