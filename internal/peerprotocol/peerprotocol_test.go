package peerprotocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, m))
	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	return got
}

func TestRoundTripAllMessageKinds(t *testing.T) {
	cases := []Message{
		ChokeMessage{},
		UnchokeMessage{},
		InterestedMessage{},
		NotInterestedMessage{},
		HaveMessage{Index: 7},
		BitfieldMessage{Data: []byte{0xff, 0x00, 0x80}},
		RequestMessage{Index: 1, Begin: 2, Length: 16384},
		PieceMessage{Index: 1, Begin: 2, Data: []byte("block-bytes")},
		CancelMessage{Index: 1, Begin: 2, Length: 16384},
	}
	for _, want := range cases {
		got := roundTrip(t, want)
		assert.Equal(t, want, got, "%T", want)
	}
}

func TestRoundTripExtensionHandshake(t *testing.T) {
	hs := NewExtensionHandshake(1234, "nimbus/1.0", "1.2.3.4")
	em, err := hs.ToExtensionMessage()
	require.NoError(t, err)

	got := roundTrip(t, em)
	gotExt, ok := got.(ExtensionMessage)
	require.True(t, ok)
	assert.Equal(t, ExtensionIDHandshake, gotExt.ExtendedMessageID)

	decoded, err := DecodeExtensionHandshake(gotExt.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), decoded.MetadataSize)
	assert.Equal(t, uint8(1), decoded.M[ExtensionKeyMetadata])
}

func TestRoundTripMetadataRequestAndData(t *testing.T) {
	req := ExtensionMetadataMessage{Type: ExtensionMetadataMessageTypeRequest, Piece: 3}
	reqBytes, err := req.Encode()
	require.NoError(t, err)
	gotReq, err := DecodeExtensionMetadataMessage(reqBytes)
	require.NoError(t, err)
	assert.Equal(t, req.Piece, gotReq.Piece)
	assert.Equal(t, ExtensionMetadataMessageTypeRequest, gotReq.Type)

	data := ExtensionMetadataMessage{
		Type:      ExtensionMetadataMessageTypeData,
		Piece:     3,
		TotalSize: 100,
		Data:      []byte("raw-info-dict-piece-bytes"),
	}
	dataBytes, err := data.Encode()
	require.NoError(t, err)
	gotData, err := DecodeExtensionMetadataMessage(dataBytes)
	require.NoError(t, err)
	assert.Equal(t, data.Data, gotData.Data)
	assert.Equal(t, data.TotalSize, gotData.TotalSize)
}

func TestRoundTripReject(t *testing.T) {
	reject := ExtensionMetadataMessage{Type: ExtensionMetadataMessageTypeReject, Piece: 9}
	b, err := reject.Encode()
	require.NoError(t, err)
	got, err := DecodeExtensionMetadataMessage(b)
	require.NoError(t, err)
	assert.Equal(t, ExtensionMetadataMessageTypeReject, got.Type)
	assert.Nil(t, got.Data)
}

func TestHandshakeRoundTrip(t *testing.T) {
	var infoHash, peerID [20]byte
	copy(infoHash[:], "abcdefghij0123456789")
	copy(peerID[:], "-NB0001-abcdefghijkl")

	h := NewHandshake(infoHash, peerID)
	var buf bytes.Buffer
	require.NoError(t, WriteHandshake(&buf, h))

	got, err := ReadHandshake(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.True(t, got.HasExtensionBit(ExtensionBitExtensionProtocol))
}

func TestReadMessageKeepAlive(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})
	m, err := ReadMessage(buf)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestReadMessageRejectsOversizedLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x7f, 0xff, 0xff, 0xff})
	_, err := ReadMessage(buf)
	require.Error(t, err)
}
