package session

import (
	"context"
	"sync"
	"time"

	"github.com/nimbus-bt/nimbus/internal/addrlist"
	"github.com/nimbus-bt/nimbus/internal/announcer"
	"github.com/nimbus-bt/nimbus/internal/tracker"
)

// stopAnnounceTimeout bounds each tracker's final event=Stopped announce so
// a slow or unreachable tracker cannot stall shutdown.
const stopAnnounceTimeout = 5 * time.Second

// startAnnouncing resolves every configured tracker URL and starts one
// Announcer per tracker, tagging each posted Result with its URL on a
// small per-tracker forwarding goroutine since announcer.Announcer shares
// the result type across trackers but the coordinator needs to know which
// one a Result came from.
func (t *torrent) startAnnouncing() {
	for _, url := range t.trackerURLs {
		if _, ok := t.announcers[url]; ok {
			continue
		}
		tr, err := t.trackerGet(url)
		if err != nil {
			t.log.Debugln("tracker unsupported:", url, err)
			continue
		}
		t.trackers[url] = tr
		resultC := make(chan announcer.Result, 1)
		a := announcer.New(tr, t.announceRequest, t.cfg.MinAnnounceInterval, resultC)
		t.announcers[url] = a
		go t.forwardAnnounceResult(url, resultC)
	}
}

func (t *torrent) forwardAnnounceResult(url string, in chan announcer.Result) {
	for {
		select {
		case res := <-in:
			select {
			case t.announceResultC <- announceResult{url: url, res: res}:
			case <-t.closeC:
				return
			}
		case <-t.closeC:
			return
		}
	}
}

// announceRequest builds the current tracker.Torrent snapshot at call
// time, since an Announcer calls this fresh before every announce.
func (t *torrent) announceRequest() tracker.Torrent {
	var left int64
	if t.info != nil {
		left = t.info.GetSize() - t.bytesDownloaded
		if left < 0 {
			left = 0
		}
	}
	return tracker.Torrent{
		InfoHash:        t.infoHash,
		PeerID:          t.ourID,
		Port:            t.cfg.PeerPort,
		BytesDownloaded: t.bytesDownloaded,
		BytesUploaded:   t.bytesUploaded,
		BytesLeft:       left,
		Event:           tracker.EventNone,
		NumWant:         50,
	}
}

func (t *torrent) handleAnnounceResult(ar announceResult) {
	if ar.res.Error != nil {
		t.log.Debugln("announce failed:", ar.url, ar.res.Error)
		return
	}
	t.pushDiscoveredAddrs(ar.res.Response.Peers, addrlist.SourceTracker)
}

// stopAnnouncers tells every tracker we're quitting (event=Stopped) before
// tearing down the periodic announce loops, so well-behaved trackers drop
// us from their peer list promptly.
func (t *torrent) stopAnnouncers() {
	var wg sync.WaitGroup
	for url, tr := range t.trackers {
		req := t.announceRequest()
		wg.Add(1)
		go func(url string, tr tracker.Tracker, req tracker.Torrent) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), stopAnnounceTimeout)
			defer cancel()
			if err := announcer.StopAnnouncer(ctx, tr, req); err != nil {
				t.log.Debugln("stopped announce failed:", url, err)
			}
		}(url, tr, req)
	}
	wg.Wait()

	for _, a := range t.announcers {
		a.Close()
	}
}
