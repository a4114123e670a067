package session

import (
	"bytes"
	"fmt"

	"github.com/jackpal/bencode-go"

	"github.com/nimbus-bt/nimbus/internal/rpc"
)

// statsList and peerList and trackerList wrap slice payloads in a bencode
// dict, since jackpal/bencode-go's top-level Marshal target here is always
// asked to encode a single value per response.
type statsList struct {
	Torrents []Stats `bencode:"torrents"`
}
type peerList struct {
	Peers []PeerInfo `bencode:"peers"`
}
type trackerList struct {
	Trackers []TrackerInfo `bencode:"trackers"`
}
type addedTorrent struct {
	InfoHash string `bencode:"info_hash"`
}

// Handler builds the rpc.Handler a daemon wires its rpc.Server to: it
// translates every Command the UI protocol defines into a Session or
// Torrent call and bencodes the result back into the Response payload.
func (s *Session) Handler() rpc.Handler {
	return func(req rpc.Request) rpc.Response {
		payload, err := s.dispatch(req)
		if err != nil {
			return rpc.Response{Error: err.Error()}
		}
		return rpc.Response{Payload: payload}
	}
}

func (s *Session) dispatch(req rpc.Request) ([]byte, error) {
	switch req.Command {
	case rpc.CommandAddTorrent:
		h, err := s.AddTorrent(bytes.NewReader(req.Torrent), req.DataDir, nil)
		if err != nil {
			return nil, err
		}
		return encode(addedTorrent{InfoHash: h.InfoHash()})

	case rpc.CommandAddMagnet:
		h, err := s.AddMagnet(req.Magnet, req.DataDir)
		if err != nil {
			return nil, err
		}
		return encode(addedTorrent{InfoHash: h.InfoHash()})

	case rpc.CommandRemoveTorrent:
		if err := s.RemoveTorrent(req.InfoHash); err != nil {
			return nil, err
		}
		return nil, nil

	case rpc.CommandListTorrents:
		list := s.ListTorrents()
		out := statsList{Torrents: make([]Stats, len(list))}
		for i, h := range list {
			out.Torrents[i] = h.Stats()
		}
		return encode(out)

	case rpc.CommandStats:
		h, err := s.GetTorrent(req.InfoHash)
		if err != nil {
			return nil, err
		}
		return encode(h.Stats())

	case rpc.CommandPause:
		h, err := s.GetTorrent(req.InfoHash)
		if err != nil {
			return nil, err
		}
		h.Pause()
		return nil, nil

	case rpc.CommandResume:
		h, err := s.GetTorrent(req.InfoHash)
		if err != nil {
			return nil, err
		}
		h.Resume()
		return nil, nil

	case rpc.CommandPeers:
		h, err := s.GetTorrent(req.InfoHash)
		if err != nil {
			return nil, err
		}
		return encode(peerList{Peers: h.Peers()})

	case rpc.CommandTrackers:
		h, err := s.GetTorrent(req.InfoHash)
		if err != nil {
			return nil, err
		}
		return encode(trackerList{Trackers: h.Trackers()})

	case rpc.CommandAddPeers:
		h, err := s.GetTorrent(req.InfoHash)
		if err != nil {
			return nil, err
		}
		h.AddPeers(req.Addrs)
		return nil, nil

	default:
		return nil, fmt.Errorf("session: unknown rpc command %q", req.Command)
	}
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
