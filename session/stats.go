package session

// Stats is a point-in-time snapshot of one torrent's progress and rates,
// the shape returned to both the RPC layer and any in-process caller.
type Stats struct {
	Name       string `bencode:"name"`
	InfoHash   string `bencode:"info_hash"`
	Status     string `bencode:"status"`
	Paused     bool   `bencode:"paused"`
	Size       int64  `bencode:"size"`
	Downloaded int64  `bencode:"downloaded"`
	Uploaded   int64  `bencode:"uploaded"`

	DownloadRate int64 `bencode:"download_rate"`
	UploadRate   int64 `bencode:"upload_rate"`

	Seeders  int `bencode:"seeders"`
	Leechers int `bencode:"leechers"`

	Error string `bencode:"error,omitempty"`
}

// PeerInfo describes one connected peer for the UI's peer list.
type PeerInfo struct {
	Addr         string `bencode:"addr"`
	Choking      bool   `bencode:"choking"`
	Interested   bool   `bencode:"interested"`
	PeerChoking  bool   `bencode:"peer_choking"`
	DownloadRate int64  `bencode:"download_rate"`
	UploadRate   int64  `bencode:"upload_rate"`
}

// TrackerInfo describes one configured tracker. trackerInfos fills only
// URL; Status, Seeders and Leechers stay at their zero values.
type TrackerInfo struct {
	URL      string `bencode:"url"`
	Status   string `bencode:"status"`
	Seeders  int    `bencode:"seeders"`
	Leechers int    `bencode:"leechers"`
}

// snapshot builds the current Stats for t. Only called from the
// coordinator goroutine, so no locking is needed.
func (t *torrent) snapshot() Stats {
	s := Stats{
		Name:       t.name,
		InfoHash:   t.infoHashHex(),
		Status:     t.status.String(),
		Paused:     t.paused,
		Downloaded: t.bytesDownloaded,
		Uploaded:   t.bytesUploaded,
	}
	if t.info != nil {
		s.Size = t.info.GetSize()
	}
	if t.lastError != nil {
		s.Error = t.lastError.Error()
	}
	var down, up int64
	for _, p := range t.peers {
		down += p.DownloadRate()
		up += p.UploadRate()
	}
	s.DownloadRate = down
	s.UploadRate = up
	return s
}

// peerInfos builds the current peer list for the UI.
func (t *torrent) peerInfos() []PeerInfo {
	out := make([]PeerInfo, 0, len(t.peers))
	for addr, p := range t.peers {
		out = append(out, PeerInfo{
			Addr:         addr,
			Choking:      p.AmChoking,
			Interested:   p.AmInterested,
			PeerChoking:  p.PeerChoking,
			DownloadRate: p.DownloadRate(),
			UploadRate:   p.UploadRate(),
		})
	}
	return out
}

// trackerInfos builds the current tracker list for the UI.
func (t *torrent) trackerInfos() []TrackerInfo {
	out := make([]TrackerInfo, 0, len(t.trackerURLs))
	for _, url := range t.trackerURLs {
		out = append(out, TrackerInfo{URL: url})
	}
	return out
}
