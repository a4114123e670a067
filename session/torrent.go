// Package session implements the Session and Torrent coordinator actors:
// the registry of running torrents and, per torrent, the single goroutine
// that owns its peers, piece picker, trackers and disk actor.
package session

import (
	"fmt"
	"time"

	"github.com/nimbus-bt/nimbus/internal/addrlist"
	"github.com/nimbus-bt/nimbus/internal/allocator"
	"github.com/nimbus-bt/nimbus/internal/announcer"
	"github.com/nimbus-bt/nimbus/internal/bitfield"
	"github.com/nimbus-bt/nimbus/internal/disk"
	"github.com/nimbus-bt/nimbus/internal/handshaker/incominghandshaker"
	"github.com/nimbus-bt/nimbus/internal/handshaker/outgoinghandshaker"
	"github.com/nimbus-bt/nimbus/internal/infodownloader"
	"github.com/nimbus-bt/nimbus/internal/logger"
	"github.com/nimbus-bt/nimbus/internal/metainfo"
	"github.com/nimbus-bt/nimbus/internal/peer"
	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
	"github.com/nimbus-bt/nimbus/internal/piecedownloader"
	"github.com/nimbus-bt/nimbus/internal/piecepicker"
	"github.com/nimbus-bt/nimbus/internal/piecewriter"
	"github.com/nimbus-bt/nimbus/internal/ratelimit"
	"github.com/nimbus-bt/nimbus/internal/resumer"
	"github.com/nimbus-bt/nimbus/internal/tracker"
	"github.com/nimbus-bt/nimbus/internal/verifier"
)

// Status is the torrent's lifecycle state, independent of the orthogonal
// Paused flag.
type Status int

const (
	StatusConnectingTrackers Status = iota
	StatusDownloadingMetainfo
	StatusDownloading
	StatusSeeding
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnectingTrackers:
		return "connecting_trackers"
	case StatusDownloadingMetainfo:
		return "downloading_metainfo"
	case StatusDownloading:
		return "downloading"
	case StatusSeeding:
		return "seeding"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// torrent is the coordinator actor for a single torrent: its Run goroutine
// is the only writer of every field below.
type torrent struct {
	infoHash [20]byte
	ourID    [20]byte
	name     string
	dataDir  string

	cfg *Config
	log logger.Logger

	info     *metainfo.Info
	bitfield *bitfield.Bitfield
	resumed  bool

	status    Status
	paused    bool
	lastError error

	trackerURLs     []string
	trackerGet      func(string) (tracker.Tracker, error)
	trackers        map[string]tracker.Tracker
	announcers      map[string]*announcer.Announcer
	announceResultC chan announceResult

	addrs *addrlist.List

	peers      map[string]*peer.Peer // by remote address string
	peerEvents chan peer.Event

	outgoing        map[string]*outgoinghandshaker.OutgoingHandshaker
	outgoingResultC chan outgoinghandshaker.Result
	incomingResultC chan incominghandshaker.Result

	picker *piecepicker.PiecePicker
	// pieceDownloaders is keyed by peer, not piece index: in endgame mode
	// piecepicker deliberately lets more than one peer work the same piece
	// index at once, so a piece-index key would silently drop one of them.
	pieceDownloaders map[*peer.Peer]*piecedownloader.PieceDownloader
	pieceOwner       map[int]*peer.Peer
	infoDownloaders  map[string]*infodownloader.InfoDownloader
	strikes          map[string]int

	disk          *disk.Disk
	allocResultC  chan allocator.Result
	verifyResultC chan verifier.Result
	writeResultC  chan piecewriter.Result

	limiter *ratelimit.Limiter

	stats Stats

	resumer resumer.Resumer

	bytesDownloaded int64
	bytesUploaded   int64
	startedAt       time.Time

	commandC chan command
	closeC   chan struct{}
	doneC    chan struct{}
}

// announceResult tags an announcer's Result with which tracker URL it came
// from, since all announcers share one result channel.
type announceResult struct {
	url string
	res announcer.Result
}

// newTorrentOptions groups the construction-time parameters a torrent
// needs that aren't already owned by the Session (info hash, trackers,
// data directory, and so on are supplied separately since they vary by
// whether the torrent was added from a .torrent file or a magnet URI).
type newTorrentOptions struct {
	infoHash       [20]byte
	ourID          [20]byte
	info           *metainfo.Info // nil until known, for magnet-only additions
	trackers       []string
	trackerGet     func(string) (tracker.Tracker, error)
	dataDir        string
	cfg            *Config
	log            logger.Logger
	resumer        resumer.Resumer
	resumeBitfield *bitfield.Bitfield
}

func newTorrent(opts newTorrentOptions) *torrent {
	t := &torrent{
		infoHash:         opts.infoHash,
		ourID:            opts.ourID,
		dataDir:          opts.dataDir,
		cfg:              opts.cfg,
		log:              opts.log,
		info:             opts.info,
		trackerURLs:      opts.trackers,
		trackerGet:       opts.trackerGet,
		trackers:         make(map[string]tracker.Tracker),
		announcers:       make(map[string]*announcer.Announcer),
		announceResultC:  make(chan announceResult, 16),
		addrs:            addrlist.New(2000),
		peers:            make(map[string]*peer.Peer),
		peerEvents:       make(chan peer.Event, 300),
		outgoing:         make(map[string]*outgoinghandshaker.OutgoingHandshaker),
		outgoingResultC:  make(chan outgoinghandshaker.Result, 300),
		incomingResultC:  make(chan incominghandshaker.Result, 300),
		pieceDownloaders: make(map[*peer.Peer]*piecedownloader.PieceDownloader),
		pieceOwner:       make(map[int]*peer.Peer),
		infoDownloaders:  make(map[string]*infodownloader.InfoDownloader),
		strikes:          make(map[string]int),
		allocResultC:     make(chan allocator.Result, 1),
		verifyResultC:    make(chan verifier.Result, 1),
		writeResultC:     make(chan piecewriter.Result, 300),
		limiter:          ratelimit.New(opts.cfg.DownloadSpeedLimit, opts.cfg.UploadSpeedLimit),
		resumer:          opts.resumer,
		startedAt:        time.Now(),
		commandC:         make(chan command, 300),
		closeC:           make(chan struct{}),
		doneC:            make(chan struct{}),
	}
	if opts.info != nil {
		if opts.resumeBitfield != nil {
			t.bitfield = opts.resumeBitfield
			t.picker = newPickerFromBitfield(int(opts.info.NumPieces), t.bitfield)
			t.resumed = true
		}
		t.status = StatusConnectingTrackers
	} else {
		t.status = StatusDownloadingMetainfo
	}
	return t
}

// infoHashHex is used as the torrent's resume-database key and RPC id.
func (t *torrent) infoHashHex() string {
	return fmt.Sprintf("%x", t.infoHash)
}

// hasInfo reports whether the info dict is known, i.e. whether metadata
// exchange has completed (or this torrent was added from a .torrent file).
func (t *torrent) hasInfo() bool { return t.info != nil }

// ourExtensions builds the handshake reserved-byte extensions we advertise:
// just the BEP-10 extension protocol bit, since the Fast Extension and DHT
// port message are both out of scope.
func (t *torrent) ourExtensions() [8]byte {
	var ext [8]byte
	bit := peerprotocol.ExtensionBitExtensionProtocol
	ext[bit/8] |= 1 << (7 - bit%8)
	return ext
}

// fail moves the torrent into StatusError; the coordinator keeps running
// so Stats/Peers/Trackers commands still answer, but the disk and tracker
// pipelines are not restarted automatically.
func (t *torrent) fail(err error) {
	t.log.Errorln("torrent failed:", err)
	t.status = StatusError
	t.lastError = err
}

// start runs the bootstrap appropriate to what's already known: a torrent
// added from a .torrent file goes straight to disk allocation, one added
// from a magnet link starts announcing to its trackers so that peers they
// return can hand it the info dict.
func (t *torrent) start() {
	if t.hasInfo() {
		t.startAllocation()
		return
	}
	t.startAnnouncing()
}
