// Package peer models one established connection to a remote peer: its
// choke/interest state, its advertised bitfield, its extension handshake
// and its rolling transfer rates. A Peer is a single-writer actor: only its
// own Run goroutine mutates its fields; the torrent coordinator reads them
// only through the snapshot accessors below or reacts to Events it emits.
package peer

import (
	"net"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/nimbus-bt/nimbus/internal/bitfield"
	"github.com/nimbus-bt/nimbus/internal/logger"
	"github.com/nimbus-bt/nimbus/internal/peerconn"
	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
)

// EventKind distinguishes the decoded wire events a Peer forwards to its
// owning torrent coordinator.
type EventKind int

const (
	EventChoke EventKind = iota
	EventUnchoke
	EventInterested
	EventNotInterested
	EventHave
	EventBitfield
	EventRequest
	EventPiece
	EventCancel
	EventExtensionHandshake
	EventMetadataRequest
	EventMetadataData
	EventMetadataReject
	EventDisconnected
)

// Event is one message (or disconnection) from this peer, tagged with the
// peer it came from so the coordinator's fan-in select can dispatch it.
type Event struct {
	Peer  *Peer
	Kind  EventKind
	Have  uint32
	Block peerprotocol.RequestMessage
	Piece peerprotocol.PieceMessage
	Meta  peerprotocol.ExtensionMetadataMessage
	Err   error
}

// Peer is one connected remote, wrapping its framed connection with the
// protocol bookkeeping the choking algorithm and piece picker depend on.
type Peer struct {
	Conn   *peerconn.Conn
	ID     [20]byte
	Addr   net.Addr
	Log    logger.Logger

	AmChoking      bool
	AmInterested   bool
	PeerChoking    bool
	PeerInterested bool

	OptimisticUnchoked bool
	Snubbed            bool

	ExtensionHandshake *peerprotocol.ExtensionHandshakeMessage
	// PeerExtensionBitfield is the reserved-byte extensions the peer
	// declared in its handshake, set once by the caller before Run starts.
	PeerExtensionBitfield [8]byte

	Bitfield *bitfield.Bitfield

	downloadSpeed metrics.EWMA
	uploadSpeed   metrics.EWMA

	BytesDownloadedInChokePeriod int64
	BytesUploadedInChokePeriod   int64

	ConnectedAt time.Time

	closeC chan struct{}
}

// New wraps a handshaked connection. numPieces sizes the peer's bitfield
// before any Bitfield/Have message has been received.
func New(conn *peerconn.Conn, id [20]byte, addr net.Addr, numPieces int, log logger.Logger) *Peer {
	return &Peer{
		Conn:          conn,
		ID:            id,
		Addr:          addr,
		Log:           log,
		AmChoking:     true,
		PeerChoking:   true,
		Bitfield:      bitfield.New(numPieces),
		downloadSpeed: metrics.NewEWMA1(),
		uploadSpeed:   metrics.NewEWMA1(),
		ConnectedAt:   time.Now(),
		closeC:        make(chan struct{}),
	}
}

// Run decodes messages from the connection and emits them as Events until
// the connection closes or Close is called; it is the peer's only
// goroutine, so AmChoking/PeerChoking/PeerInterested/Bitfield/Snubbed are
// safe to mutate here without a lock.
func (p *Peer) Run(events chan<- Event) {
	for {
		select {
		case m, ok := <-p.Conn.Messages:
			if !ok {
				events <- Event{Peer: p, Kind: EventDisconnected}
				return
			}
			p.handle(m, events)
		case <-p.closeC:
			return
		}
	}
}

func (p *Peer) handle(m peerprotocol.Message, events chan<- Event) {
	switch v := m.(type) {
	case peerprotocol.ChokeMessage:
		p.PeerChoking = true
		events <- Event{Peer: p, Kind: EventChoke}
	case peerprotocol.UnchokeMessage:
		p.PeerChoking = false
		events <- Event{Peer: p, Kind: EventUnchoke}
	case peerprotocol.InterestedMessage:
		p.PeerInterested = true
		events <- Event{Peer: p, Kind: EventInterested}
	case peerprotocol.NotInterestedMessage:
		p.PeerInterested = false
		events <- Event{Peer: p, Kind: EventNotInterested}
	case peerprotocol.HaveMessage:
		p.Bitfield.Set(int(v.Index))
		events <- Event{Peer: p, Kind: EventHave, Have: v.Index}
	case peerprotocol.BitfieldMessage:
		bf, err := bitfield.NewBytes(v.Data, p.Bitfield.Len())
		if err != nil {
			events <- Event{Peer: p, Kind: EventDisconnected, Err: err}
			return
		}
		p.Bitfield = bf
		events <- Event{Peer: p, Kind: EventBitfield}
	case peerprotocol.RequestMessage:
		events <- Event{Peer: p, Kind: EventRequest, Block: v}
	case peerprotocol.PieceMessage:
		p.BytesDownloadedInChokePeriod += int64(len(v.Data))
		p.downloadSpeed.Update(int64(len(v.Data)))
		p.Snubbed = false
		events <- Event{Peer: p, Kind: EventPiece, Piece: v}
	case peerprotocol.CancelMessage:
		events <- Event{Peer: p, Kind: EventCancel, Block: peerprotocol.RequestMessage(v)}
	case peerprotocol.ExtensionMessage:
		p.handleExtension(v, events)
	}
}

func (p *Peer) handleExtension(m peerprotocol.ExtensionMessage, events chan<- Event) {
	switch m.ExtendedMessageID {
	case peerprotocol.ExtensionIDHandshake:
		hs, err := peerprotocol.DecodeExtensionHandshake(m.Payload)
		if err != nil {
			events <- Event{Peer: p, Kind: EventDisconnected, Err: err}
			return
		}
		p.ExtensionHandshake = &hs
		events <- Event{Peer: p, Kind: EventExtensionHandshake}
	default:
		meta, err := peerprotocol.DecodeExtensionMetadataMessage(m.Payload)
		if err != nil {
			events <- Event{Peer: p, Kind: EventDisconnected, Err: err}
			return
		}
		switch meta.Type {
		case peerprotocol.ExtensionMetadataMessageTypeRequest:
			events <- Event{Peer: p, Kind: EventMetadataRequest, Meta: meta}
		case peerprotocol.ExtensionMetadataMessageTypeData:
			events <- Event{Peer: p, Kind: EventMetadataData, Meta: meta}
		case peerprotocol.ExtensionMetadataMessageTypeReject:
			events <- Event{Peer: p, Kind: EventMetadataReject, Meta: meta}
		}
	}
}

// SupportsExtensionProtocol reports whether the peer's handshake set the
// BEP-10 extension-protocol reserved bit.
func (p *Peer) SupportsExtensionProtocol() bool {
	h := peerprotocol.Handshake{Extensions: p.PeerExtensionBitfield}
	return h.HasExtensionBit(peerprotocol.ExtensionBitExtensionProtocol)
}

// SupportsMetadataExtension reports whether the peer's handshake advertised
// ut_metadata support, and returns the id to address ut_metadata messages
// to on this connection.
func (p *Peer) SupportsMetadataExtension() (peerprotocol.ExtensionID, bool) {
	if p.ExtensionHandshake == nil {
		return 0, false
	}
	id, ok := p.ExtensionHandshake.M[peerprotocol.ExtensionKeyMetadata]
	return peerprotocol.ExtensionID(id), ok
}

// TickRates advances the rolling rate counters; the coordinator calls this
// once per speed-sample period (see session timers).
func (p *Peer) TickRates() {
	p.downloadSpeed.Tick()
	p.uploadSpeed.Tick()
}

// DownloadRate returns the current download rate in bytes/sec.
func (p *Peer) DownloadRate() int64 { return p.downloadSpeed.Rate() }

// UploadRate returns the current upload rate in bytes/sec.
func (p *Peer) UploadRate() int64 { return p.uploadSpeed.Rate() }

// ResetChokePeriodCounters zeroes the per-unchoke-period byte counters the
// choking algorithm ranks peers by.
func (p *Peer) ResetChokePeriodCounters() {
	p.BytesDownloadedInChokePeriod = 0
	p.BytesUploadedInChokePeriod = 0
}

func (p *Peer) SendChoke() error {
	if p.AmChoking {
		return nil
	}
	p.AmChoking = true
	return p.Conn.Send(peerprotocol.ChokeMessage{})
}

func (p *Peer) SendUnchoke() error {
	if !p.AmChoking {
		return nil
	}
	p.AmChoking = false
	return p.Conn.Send(peerprotocol.UnchokeMessage{})
}

func (p *Peer) SendInterested() error {
	if p.AmInterested {
		return nil
	}
	p.AmInterested = true
	return p.Conn.Send(peerprotocol.InterestedMessage{})
}

func (p *Peer) SendNotInterested() error {
	if !p.AmInterested {
		return nil
	}
	p.AmInterested = false
	return p.Conn.Send(peerprotocol.NotInterestedMessage{})
}

func (p *Peer) SendHave(index uint32) error {
	return p.Conn.Send(peerprotocol.HaveMessage{Index: index})
}

func (p *Peer) SendBitfield(b *bitfield.Bitfield) error {
	return p.Conn.Send(peerprotocol.BitfieldMessage{Data: b.Bytes()})
}

func (p *Peer) SendRequest(index, begin, length uint32) error {
	return p.Conn.Send(peerprotocol.RequestMessage{Index: index, Begin: begin, Length: length})
}

func (p *Peer) SendCancel(index, begin, length uint32) error {
	return p.Conn.Send(peerprotocol.CancelMessage{Index: index, Begin: begin, Length: length})
}

func (p *Peer) SendPiece(index, begin uint32, data []byte) error {
	p.BytesUploadedInChokePeriod += int64(len(data))
	p.uploadSpeed.Update(int64(len(data)))
	return p.Conn.Send(peerprotocol.PieceMessage{Index: index, Begin: begin, Data: data})
}

func (p *Peer) SendExtensionHandshake(metadataSize uint32, version, yourIP string) error {
	hs := peerprotocol.NewExtensionHandshake(metadataSize, version, yourIP)
	em, err := hs.ToExtensionMessage()
	if err != nil {
		return err
	}
	return p.Conn.Send(em)
}

func (p *Peer) SendMetadataRequest(extID peerprotocol.ExtensionID, piece uint32) error {
	b, err := (peerprotocol.ExtensionMetadataMessage{Type: peerprotocol.ExtensionMetadataMessageTypeRequest, Piece: piece}).Encode()
	if err != nil {
		return err
	}
	return p.Conn.Send(peerprotocol.ExtensionMessage{ExtendedMessageID: extID, Payload: b})
}

func (p *Peer) SendMetadataReject(extID peerprotocol.ExtensionID, piece uint32) error {
	b, err := (peerprotocol.ExtensionMetadataMessage{Type: peerprotocol.ExtensionMetadataMessageTypeReject, Piece: piece}).Encode()
	if err != nil {
		return err
	}
	return p.Conn.Send(peerprotocol.ExtensionMessage{ExtendedMessageID: extID, Payload: b})
}

func (p *Peer) SendMetadataData(extID peerprotocol.ExtensionID, piece, totalSize uint32, data []byte) error {
	b, err := (peerprotocol.ExtensionMetadataMessage{Type: peerprotocol.ExtensionMetadataMessageTypeData, Piece: piece, TotalSize: totalSize, Data: data}).Encode()
	if err != nil {
		return err
	}
	return p.Conn.Send(peerprotocol.ExtensionMessage{ExtendedMessageID: extID, Payload: b})
}

// Close stops the peer's Run goroutine and its underlying connection.
func (p *Peer) Close() error {
	close(p.closeC)
	return p.Conn.Close()
}
