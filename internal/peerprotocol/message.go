// Package peerprotocol implements the BitTorrent v1 wire protocol: the
// handshake, the 4-byte length-prefixed message framing, and the
// metadata-exchange (BEP-9/10) extension messages.
package peerprotocol

import (
	"encoding/binary"
	"fmt"
)

// ID identifies a wire message's type, the byte following the length prefix.
type ID byte

const (
	Choke ID = iota
	Unchoke
	Interested
	NotInterested
	Have
	Bitfield
	Request
	Piece
	Cancel
)

// Extended is the id-20 extension-protocol dispatch message (BEP-10).
const Extended ID = 20

func (id ID) String() string {
	switch id {
	case Choke:
		return "choke"
	case Unchoke:
		return "unchoke"
	case Interested:
		return "interested"
	case NotInterested:
		return "not_interested"
	case Have:
		return "have"
	case Bitfield:
		return "bitfield"
	case Request:
		return "request"
	case Piece:
		return "piece"
	case Cancel:
		return "cancel"
	case Extended:
		return "extended"
	default:
		return fmt.Sprintf("unknown(%d)", byte(id))
	}
}

// Message is any wire message: its ID and its encoded payload (the bytes
// following the id byte, not including the 4-byte length prefix).
type Message interface {
	MessageID() ID
	Payload() []byte
}

// ChokeMessage tells the remote peer we will not serve its requests.
type ChokeMessage struct{}

func (ChokeMessage) MessageID() ID    { return Choke }
func (ChokeMessage) Payload() []byte  { return nil }

// UnchokeMessage tells the remote peer it may now request blocks.
type UnchokeMessage struct{}

func (UnchokeMessage) MessageID() ID   { return Unchoke }
func (UnchokeMessage) Payload() []byte { return nil }

// InterestedMessage tells the remote we want data from it.
type InterestedMessage struct{}

func (InterestedMessage) MessageID() ID   { return Interested }
func (InterestedMessage) Payload() []byte { return nil }

// NotInterestedMessage tells the remote we no longer want data from it.
type NotInterestedMessage struct{}

func (NotInterestedMessage) MessageID() ID   { return NotInterested }
func (NotInterestedMessage) Payload() []byte { return nil }

// HaveMessage announces possession of a single piece.
type HaveMessage struct {
	Index uint32
}

func (m HaveMessage) MessageID() ID { return Have }
func (m HaveMessage) Payload() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, m.Index)
	return b
}

// BitfieldMessage carries the sender's full piece bitfield. Must be the
// first message sent after the handshake, if sent at all.
type BitfieldMessage struct {
	Data []byte
}

func (m BitfieldMessage) MessageID() ID   { return Bitfield }
func (m BitfieldMessage) Payload() []byte { return m.Data }

// RequestMessage asks the remote for one block.
type RequestMessage struct {
	Index, Begin, Length uint32
}

func (m RequestMessage) MessageID() ID { return Request }
func (m RequestMessage) Payload() []byte {
	return encodeBlockHeader(m.Index, m.Begin, m.Length)
}

// PieceMessage carries the payload of a previously requested block.
type PieceMessage struct {
	Index, Begin uint32
	Data         []byte
}

func (m PieceMessage) MessageID() ID { return Piece }
func (m PieceMessage) Payload() []byte {
	b := make([]byte, 8+len(m.Data))
	binary.BigEndian.PutUint32(b[0:4], m.Index)
	binary.BigEndian.PutUint32(b[4:8], m.Begin)
	copy(b[8:], m.Data)
	return b
}

// CancelMessage revokes a previously sent Request.
type CancelMessage struct {
	Index, Begin, Length uint32
}

func (m CancelMessage) MessageID() ID { return Cancel }
func (m CancelMessage) Payload() []byte {
	return encodeBlockHeader(m.Index, m.Begin, m.Length)
}

func encodeBlockHeader(index, begin, length uint32) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], index)
	binary.BigEndian.PutUint32(b[4:8], begin)
	binary.BigEndian.PutUint32(b[8:12], length)
	return b
}

func decodeBlockHeader(b []byte) (index, begin, length uint32, err error) {
	if len(b) != 12 {
		return 0, 0, 0, fmt.Errorf("peerprotocol: bad block header length %d", len(b))
	}
	return binary.BigEndian.Uint32(b[0:4]), binary.BigEndian.Uint32(b[4:8]), binary.BigEndian.Uint32(b[8:12]), nil
}
