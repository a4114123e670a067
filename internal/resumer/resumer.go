// Package resumer defines the persisted per-torrent state a session reloads
// on startup so a restart doesn't re-verify or re-discover everything.
package resumer

// Spec is the persisted identity and configuration of one torrent: enough
// to reconstruct it without the original .torrent file or magnet link.
type Spec struct {
	InfoHash     []byte
	Name         string
	Port         int
	Trackers     []string
	DataDir      string
	Bitfield     []byte
	AddedAt      int64
	Info         []byte // raw bencoded info dict, once known
	Paused       bool
	BytesDownloaded int64
	BytesUploaded   int64
}

// Resumer persists and reloads torrent Specs across restarts.
type Resumer interface {
	Write(infoHash string, spec Spec) error
	Read(infoHash string) (Spec, error)
	ReadAll() (map[string]Spec, error)
	Delete(infoHash string) error
	Close() error
}
