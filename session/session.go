// Package session provides a BitTorrent client implementation capable of
// downloading and seeding multiple torrents in parallel, each as its own
// actor goroutine.
package session

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/satori/go.uuid"

	"github.com/nimbus-bt/nimbus/internal/acceptor"
	"github.com/nimbus-bt/nimbus/internal/bitfield"
	"github.com/nimbus-bt/nimbus/internal/handshaker/incominghandshaker"
	"github.com/nimbus-bt/nimbus/internal/logger"
	"github.com/nimbus-bt/nimbus/internal/magnet"
	"github.com/nimbus-bt/nimbus/internal/metainfo"
	"github.com/nimbus-bt/nimbus/internal/peerid"
	"github.com/nimbus-bt/nimbus/internal/resumer"
	"github.com/nimbus-bt/nimbus/internal/resumer/boltdbresumer"
	"github.com/nimbus-bt/nimbus/internal/trackermanager"
)

var (
	// ErrAlreadyAdded is returned when a torrent with the same info hash
	// is already managed by this Session.
	ErrAlreadyAdded = errors.New("session: torrent already added")
	// ErrNotFound is returned when an info hash names no managed torrent.
	ErrNotFound = errors.New("session: torrent not found")
)

// Session is the registry of every torrent this process manages: it owns
// the shared peer listener, resume database and tracker client cache that
// individual torrent coordinators borrow from.
type Session struct {
	cfg *Config
	log logger.Logger

	ourID [20]byte

	mu       sync.RWMutex
	torrents map[string]*torrent

	resumer  resumer.Resumer
	trackers *trackermanager.Manager

	acceptor      *acceptor.Acceptor
	acceptResultC chan acceptor.Result
	handshakeC    chan incominghandshaker.Result

	closeC chan struct{}
}

// New opens a Session: its resume database, its shared peer listener, and
// every torrent found in the resume database from a prior run.
func New(cfg *Config) (*Session, error) {
	id, err := peerid.Generate()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	db, err := boltdbresumer.New(cfg.Database)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:           cfg,
		log:           logger.New("session"),
		ourID:         id,
		torrents:      make(map[string]*torrent),
		resumer:       db,
		trackers:      trackermanager.New(),
		acceptResultC: make(chan acceptor.Result, 64),
		handshakeC:    make(chan incominghandshaker.Result, 300),
		closeC:        make(chan struct{}),
	}

	a, err := acceptor.New(fmt.Sprintf(":%d", cfg.PeerPort), s.acceptResultC)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.acceptor = a
	go s.acceptLoop()
	go s.dispatchIncoming()

	if err := s.loadExisting(); err != nil {
		s.log.Errorln("failed loading resumed torrents:", err)
	}
	return s, nil
}

// loadExisting reconstructs every torrent found in the resume database,
// starting each one's coordinator goroutine.
func (s *Session) loadExisting() error {
	specs, err := s.resumer.ReadAll()
	if err != nil {
		return err
	}
	for infoHashHex, spec := range specs {
		var infoHash [20]byte
		copy(infoHash[:], spec.InfoHash)

		var info *metainfo.Info
		if len(spec.Info) > 0 {
			info, err = metainfo.NewInfo(spec.Info)
			if err != nil {
				s.log.Errorln("dropping resumed torrent", infoHashHex, "bad info:", err)
				continue
			}
		}
		var bf *bitfield.Bitfield
		if info != nil && len(spec.Bitfield) > 0 {
			bf, err = bitfield.NewBytes(spec.Bitfield, int(info.NumPieces))
			if err != nil {
				bf = nil
			}
		}

		t := newTorrent(newTorrentOptions{
			infoHash:       infoHash,
			ourID:          s.ourID,
			info:           info,
			trackers:       spec.Trackers,
			trackerGet:     s.trackers.Get,
			dataDir:        spec.DataDir,
			cfg:            s.cfg,
			log:            logger.New("torrent " + infoHashHex[:8]),
			resumer:        s.resumer,
			resumeBitfield: bf,
		})
		t.name = spec.Name
		t.paused = spec.Paused
		t.bytesDownloaded = spec.BytesDownloaded
		t.bytesUploaded = spec.BytesUploaded

		s.mu.Lock()
		s.torrents[infoHashHex] = t
		s.mu.Unlock()
		go t.Run()
	}
	return nil
}

// acceptLoop completes the BitTorrent handshake on every incoming
// connection; the handshake itself runs on its own goroutine via
// incominghandshaker so a slow or hostile peer can never stall the
// listener.
func (s *Session) acceptLoop() {
	for {
		select {
		case res, ok := <-s.acceptResultC:
			if !ok || res.Error != nil {
				return
			}
			incominghandshaker.New(res.Conn, s.ourID, s.ourExtensions, s.hasTorrent, s.cfg.HandshakeTimeout, s.handshakeC)
		case <-s.closeC:
			return
		}
	}
}

// ourExtensions is the reserved handshake byte array advertised to
// incoming connections, identical across every torrent since it only ever
// signals BEP-10 support.
func (s *Session) ourExtensions() [8]byte {
	var ext [8]byte
	const extensionBit = 43
	ext[extensionBit/8] |= 1 << (7 - extensionBit%8)
	return ext
}

func (s *Session) hasTorrent(infoHash [20]byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.torrents[fmt.Sprintf("%x", infoHash)]
	return ok
}

// dispatchIncoming forwards one completed incoming handshake to its
// torrent's coordinator. It runs as its own goroutine so the accept loop
// never waits on a coordinator; while a coordinator's incomingResultC is
// full, dispatch to every other torrent waits too.
func (s *Session) dispatchIncoming() {
	for {
		select {
		case res := <-s.handshakeC:
			if res.Error != nil {
				continue
			}
			key := fmt.Sprintf("%x", res.InfoHash)
			s.mu.RLock()
			t, ok := s.torrents[key]
			s.mu.RUnlock()
			if !ok {
				res.Conn.Close()
				continue
			}
			select {
			case t.incomingResultC <- res:
			case <-t.doneC:
				res.Conn.Close()
			}
		case <-s.closeC:
			return
		}
	}
}

// AddTorrent registers a new torrent from the bencoded contents of a
// .torrent file and starts its coordinator.
func (s *Session) AddTorrent(r io.Reader, dataDir string, extraTrackers []string) (*Torrent, error) {
	mi, err := metainfo.New(r)
	if err != nil {
		return nil, err
	}
	infoHash := sha1.Sum(mi.Info.Bytes)
	trackers := append(mi.GetTrackers(), extraTrackers...)
	return s.addTorrent(infoHash, mi.Info, trackers, dataDir)
}

// AddMagnet registers a new torrent from a magnet URI; its info dict is
// fetched from the swarm via BEP-9 before allocation can begin.
func (s *Session) AddMagnet(uri string, dataDir string) (*Torrent, error) {
	m, err := magnet.Parse(uri)
	if err != nil {
		return nil, err
	}
	return s.addTorrent(m.InfoHash, nil, m.Trackers, dataDir)
}

func (s *Session) addTorrent(infoHash [20]byte, info *metainfo.Info, trackers []string, dataDir string) (*Torrent, error) {
	key := fmt.Sprintf("%x", infoHash)

	s.mu.Lock()
	if _, ok := s.torrents[key]; ok {
		s.mu.Unlock()
		return nil, ErrAlreadyAdded
	}
	if dataDir == "" {
		dataDir = s.cfg.DataDir
	}

	id := uuid.NewV4()
	t := newTorrent(newTorrentOptions{
		infoHash:   infoHash,
		ourID:      s.ourID,
		info:       info,
		trackers:   trackers,
		trackerGet: s.trackers.Get,
		dataDir:    dataDir,
		cfg:        s.cfg,
		log:        logger.New("torrent " + id.String()[:8]),
		resumer:    s.resumer,
	})
	s.torrents[key] = t
	s.mu.Unlock()

	go t.Run()
	return &Torrent{t: t}, nil
}

// GetTorrent returns the handle for a managed torrent by hex info hash.
func (s *Session) GetTorrent(infoHashHex string) (*Torrent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.torrents[infoHashHex]
	if !ok {
		return nil, ErrNotFound
	}
	return &Torrent{t: t}, nil
}

// ListTorrents returns a handle for every managed torrent.
func (s *Session) ListTorrents() []*Torrent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Torrent, 0, len(s.torrents))
	for _, t := range s.torrents {
		out = append(out, &Torrent{t: t})
	}
	return out
}

// RemoveTorrent stops a managed torrent and deletes its resume state.
func (s *Session) RemoveTorrent(infoHashHex string) error {
	s.mu.Lock()
	t, ok := s.torrents[infoHashHex]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.torrents, infoHashHex)
	s.mu.Unlock()

	reply := make(chan struct{})
	select {
	case t.commandC <- cmdQuit{reply: reply}:
		<-t.doneC
	case <-t.doneC:
	}
	return s.resumer.Delete(infoHashHex)
}

// Close stops the peer listener, then every torrent's coordinator, then
// the resume database, in that order.
func (s *Session) Close() error {
	close(s.closeC)
	s.acceptor.Close()

	s.mu.Lock()
	torrents := make([]*torrent, 0, len(s.torrents))
	for _, t := range s.torrents {
		torrents = append(torrents, t)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range torrents {
		wg.Add(1)
		go func(t *torrent) {
			defer wg.Done()
			close(t.closeC)
			<-t.doneC
		}(t)
	}
	wg.Wait()

	return s.resumer.Close()
}
