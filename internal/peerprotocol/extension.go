package peerprotocol

import (
	"fmt"

	"github.com/zeebo/bencode"
)

// ExtensionID identifies a sub-message within the id-20 Extended dispatch.
// Zero is reserved by BEP-10 for the handshake itself; all other ids are
// negotiated per-connection through the handshake's "m" dictionary.
type ExtensionID byte

const ExtensionIDHandshake ExtensionID = 0

// ExtensionKeyMetadata is the "m" dictionary key this client advertises and
// looks for when negotiating ut_metadata (BEP-9) support with a peer.
const ExtensionKeyMetadata = "ut_metadata"

// ExtensionMessage is the Extended message's payload: a sub-id byte followed
// by a bencoded body specific to that sub-id.
type ExtensionMessage struct {
	ExtendedMessageID ExtensionID
	Payload           []byte
}

func (m ExtensionMessage) MessageID() ID { return Extended }

func (m ExtensionMessage) Payload() []byte {
	b := make([]byte, 1+len(m.Payload))
	b[0] = byte(m.ExtendedMessageID)
	copy(b[1:], m.Payload)
	return b
}

// ExtensionHandshakeMessage is the BEP-10 handshake exchanged as extended
// sub-id 0, advertising which extensions we support and our metadata size.
type ExtensionHandshakeMessage struct {
	M            map[string]uint8 `bencode:"m"`
	MetadataSize uint32           `bencode:"metadata_size,omitempty"`
	Version      string           `bencode:"v,omitempty"`
	YourIP       string           `bencode:"yourip,omitempty"`
}

// NewExtensionHandshake builds our outgoing handshake. metadataSize is zero
// until the info dict has been fully downloaded.
func NewExtensionHandshake(metadataSize uint32, version string, yourIP string) ExtensionHandshakeMessage {
	return ExtensionHandshakeMessage{
		M:            map[string]uint8{ExtensionKeyMetadata: 1},
		MetadataSize: metadataSize,
		Version:      version,
		YourIP:       yourIP,
	}
}

// Encode bencodes the handshake body (everything after the sub-id byte).
func (h ExtensionHandshakeMessage) Encode() ([]byte, error) {
	return bencode.EncodeBytes(h)
}

// ToExtensionMessage wraps the encoded handshake as an ExtensionMessage.
func (h ExtensionHandshakeMessage) ToExtensionMessage() (ExtensionMessage, error) {
	b, err := h.Encode()
	if err != nil {
		return ExtensionMessage{}, err
	}
	return ExtensionMessage{ExtendedMessageID: ExtensionIDHandshake, Payload: b}, nil
}

func DecodeExtensionHandshake(b []byte) (ExtensionHandshakeMessage, error) {
	var h ExtensionHandshakeMessage
	if err := bencode.DecodeBytes(b, &h); err != nil {
		return ExtensionHandshakeMessage{}, err
	}
	return h, nil
}

// ExtensionMetadataMessageType distinguishes request/data/reject within the
// ut_metadata sub-protocol (BEP-9 section "ut_metadata").
type ExtensionMetadataMessageType int

const (
	ExtensionMetadataMessageTypeRequest ExtensionMetadataMessageType = 0
	ExtensionMetadataMessageTypeData    ExtensionMetadataMessageType = 1
	ExtensionMetadataMessageTypeReject  ExtensionMetadataMessageType = 2
)

// ExtensionMetadataMessage is one ut_metadata request/data/reject exchange.
// For a Data message, TotalSize is set and the raw info-dict bytes for this
// piece follow the bencoded dict directly in the wire payload.
type ExtensionMetadataMessage struct {
	Type      ExtensionMetadataMessageType `bencode:"msg_type"`
	Piece     uint32                       `bencode:"piece"`
	TotalSize uint32                       `bencode:"total_size,omitempty"`

	// Data holds the raw info-dict bytes appended after the bencoded dict,
	// populated only for Type == ExtensionMetadataMessageTypeData.
	Data []byte `bencode:"-"`
}

// Encode bencodes the dict and appends Data verbatim, matching how real
// clients trail the piece bytes after the bencoded metadata message.
func (m ExtensionMetadataMessage) Encode() ([]byte, error) {
	head, err := bencode.EncodeBytes(struct {
		Type      ExtensionMetadataMessageType `bencode:"msg_type"`
		Piece     uint32                       `bencode:"piece"`
		TotalSize uint32                       `bencode:"total_size,omitempty"`
	}{m.Type, m.Piece, m.TotalSize})
	if err != nil {
		return nil, err
	}
	if len(m.Data) == 0 {
		return head, nil
	}
	return append(head, m.Data...), nil
}

// DecodeExtensionMetadataMessage splits the bencoded dict prefix from any
// trailing raw piece bytes: a Data message trails the raw info-dict piece
// directly after the bencoded msg_type/piece/total_size dict.
func DecodeExtensionMetadataMessage(b []byte) (ExtensionMetadataMessage, error) {
	n, err := bencodeValueLen(b)
	if err != nil {
		return ExtensionMetadataMessage{}, fmt.Errorf("peerprotocol: decode ut_metadata message: %w", err)
	}
	var m ExtensionMetadataMessage
	if err := bencode.DecodeBytes(b[:n], &m); err != nil {
		return ExtensionMetadataMessage{}, fmt.Errorf("peerprotocol: decode ut_metadata message: %w", err)
	}
	if m.Type == ExtensionMetadataMessageTypeData {
		m.Data = b[n:]
	}
	return m, nil
}

// bencodeValueLen returns the byte length of the single bencoded value
// (int, string, list or dict) at the start of b, without needing a
// decoder-internal buffered-byte count.
func bencodeValueLen(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("peerprotocol: empty bencode value")
	}
	switch b[0] {
	case 'i':
		for i := 1; i < len(b); i++ {
			if b[i] == 'e' {
				return i + 1, nil
			}
		}
		return 0, fmt.Errorf("peerprotocol: unterminated bencode integer")
	case 'l', 'd':
		i := 1
		for {
			if i >= len(b) {
				return 0, fmt.Errorf("peerprotocol: unterminated bencode %c", b[0])
			}
			if b[i] == 'e' {
				return i + 1, nil
			}
			if b[0] == 'd' {
				klen, err := bencodeValueLen(b[i:])
				if err != nil {
					return 0, err
				}
				i += klen
				if i >= len(b) {
					return 0, fmt.Errorf("peerprotocol: truncated bencode dict")
				}
			}
			vlen, err := bencodeValueLen(b[i:])
			if err != nil {
				return 0, err
			}
			i += vlen
		}
	default:
		if b[0] < '0' || b[0] > '9' {
			return 0, fmt.Errorf("peerprotocol: invalid bencode value tag %q", b[0])
		}
		colon := -1
		for i := 0; i < len(b) && i < 20; i++ {
			if b[i] == ':' {
				colon = i
				break
			}
		}
		if colon < 0 {
			return 0, fmt.Errorf("peerprotocol: bad bencode string length prefix")
		}
		n := 0
		for _, c := range b[:colon] {
			n = n*10 + int(c-'0')
		}
		end := colon + 1 + n
		if end > len(b) {
			return 0, fmt.Errorf("peerprotocol: truncated bencode string")
		}
		return end, nil
	}
}
