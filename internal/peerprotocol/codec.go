package peerprotocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxMessageLen bounds the length prefix accepted from a peer, guarding
// against a malicious or corrupt length field forcing a huge allocation.
const MaxMessageLen = 1 << 20 // 1 MiB: above any legal block/bitfield size

// WriteMessage frames m as a 4-byte big-endian length prefix, an id byte and
// the message's payload, and writes it to w. A nil m writes a zero-length
// keep-alive.
func WriteMessage(w io.Writer, m Message) error {
	if m == nil {
		var lenBuf [4]byte
		_, err := w.Write(lenBuf[:])
		return err
	}
	payload := m.Payload()
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(m.MessageID())
	copy(buf[5:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadMessage reads one framed message from r. It returns (nil, nil) for a
// keep-alive (zero-length) message.
func ReadMessage(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, nil
	}
	if n > MaxMessageLen {
		return nil, fmt.Errorf("peerprotocol: message length %d exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return decodeMessage(ID(body[0]), body[1:])
}

func decodeMessage(id ID, payload []byte) (Message, error) {
	switch id {
	case Choke:
		return ChokeMessage{}, nil
	case Unchoke:
		return UnchokeMessage{}, nil
	case Interested:
		return InterestedMessage{}, nil
	case NotInterested:
		return NotInterestedMessage{}, nil
	case Have:
		if len(payload) != 4 {
			return nil, fmt.Errorf("peerprotocol: bad have payload length %d", len(payload))
		}
		return HaveMessage{Index: binary.BigEndian.Uint32(payload)}, nil
	case Bitfield:
		return BitfieldMessage{Data: append([]byte(nil), payload...)}, nil
	case Request:
		idx, begin, length, err := decodeBlockHeader(payload)
		if err != nil {
			return nil, err
		}
		return RequestMessage{Index: idx, Begin: begin, Length: length}, nil
	case Piece:
		if len(payload) < 8 {
			return nil, fmt.Errorf("peerprotocol: bad piece payload length %d", len(payload))
		}
		return PieceMessage{
			Index: binary.BigEndian.Uint32(payload[0:4]),
			Begin: binary.BigEndian.Uint32(payload[4:8]),
			Data:  append([]byte(nil), payload[8:]...),
		}, nil
	case Cancel:
		idx, begin, length, err := decodeBlockHeader(payload)
		if err != nil {
			return nil, err
		}
		return CancelMessage{Index: idx, Begin: begin, Length: length}, nil
	case Extended:
		if len(payload) < 1 {
			return nil, fmt.Errorf("peerprotocol: empty extended message")
		}
		return ExtensionMessage{
			ExtendedMessageID: ExtensionID(payload[0]),
			Payload:           append([]byte(nil), payload[1:]...),
		}, nil
	default:
		return nil, fmt.Errorf("peerprotocol: unknown message id %d", byte(id))
	}
}
