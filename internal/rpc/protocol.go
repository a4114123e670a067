// Package rpc implements the daemon/UI control protocol: a single
// persistent TCP stream carrying length-prefixed, bencoded request/response
// frames.
package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jackpal/bencode-go"
)

// ProtocolVersion is bumped whenever Request or Response gains or loses a
// field in a way that breaks older clients or daemons.
const ProtocolVersion = 1

// MaxFrameLen bounds the length prefix accepted from the peer end of the
// stream, guarding against a corrupt length field forcing a huge read.
const MaxFrameLen = 16 << 20

// Command identifies which operation a Request performs.
type Command string

const (
	CommandAddTorrent    Command = "add_torrent"
	CommandAddMagnet     Command = "add_magnet"
	CommandRemoveTorrent Command = "remove_torrent"
	CommandListTorrents  Command = "list_torrents"
	CommandStats         Command = "stats"
	CommandPause         Command = "pause"
	CommandResume        Command = "resume"
	CommandPeers         Command = "peers"
	CommandTrackers      Command = "trackers"
	CommandAddPeers      Command = "add_peers"
)

// Request is one client->daemon call.
type Request struct {
	Version  int     `bencode:"version"`
	ID       int64   `bencode:"id"`
	Command  Command `bencode:"command"`
	InfoHash string  `bencode:"info_hash,omitempty"`
	Torrent  []byte  `bencode:"torrent,omitempty"`
	Magnet   string  `bencode:"magnet,omitempty"`
	DataDir  string  `bencode:"data_dir,omitempty"`
	Addrs    []string `bencode:"addrs,omitempty"`
}

// Response is one daemon->client answer.
type Response struct {
	Version int    `bencode:"version"`
	ID      int64  `bencode:"id"`
	Error   string `bencode:"error,omitempty"`
	Payload []byte `bencode:"payload,omitempty"`
}

// WriteFrame bencodes v and writes it as a 4-byte-length-prefixed frame.
func WriteFrame(w io.Writer, v interface{}) error {
	body, err := bencodeEncode(v)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFrame reads one length-prefixed frame and bencode-decodes it into v.
func ReadFrame(r io.Reader, v interface{}) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameLen {
		return fmt.Errorf("rpc: frame length %d exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	return bencode.Unmarshal(bytes.NewReader(body), v)
}

func bencodeEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
