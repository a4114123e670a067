package session

// command is anything the public Torrent handle can send to a running
// coordinator over its commandC. Each concrete command carries its own
// reply channel when it needs one, so the coordinator never blocks
// waiting on a caller that gave up.
type command interface{ isTorrentCommand() }

type cmdPause struct{}

func (cmdPause) isTorrentCommand() {}

type cmdResume struct{}

func (cmdResume) isTorrentCommand() {}

type cmdStats struct{ reply chan<- Stats }

func (cmdStats) isTorrentCommand() {}

type cmdPeers struct{ reply chan<- []PeerInfo }

func (cmdPeers) isTorrentCommand() {}

type cmdTrackers struct{ reply chan<- []TrackerInfo }

func (cmdTrackers) isTorrentCommand() {}

type cmdAddPeers struct{ addrs []string }

func (cmdAddPeers) isTorrentCommand() {}

type cmdQuit struct{ reply chan<- struct{} }

func (cmdQuit) isTorrentCommand() {}
