// Package allocator creates and sizes a torrent's on-disk files on its own
// goroutine, since preallocating a large multi-gigabyte layout can block
// for a noticeable time and must never stall the torrent actor's loop.
package allocator

import (
	"github.com/nimbus-bt/nimbus/internal/metainfo"
	"github.com/nimbus-bt/nimbus/internal/storage"
	"github.com/nimbus-bt/nimbus/internal/storage/filestorage"
)

// Progress reports allocation status. Allocation is a single
// filesystem-truncate step per file, so a run sends one Progress carrying
// the file count (dropped if the channel is full) just before its Result.
type Progress struct {
	FilesAllocated int
}

// Result is posted once allocation finishes, successfully or not.
type Result struct {
	Storage storage.Storage
	Error   error
}

// Allocator owns one allocation run for one torrent.
type Allocator struct {
	dir      string
	info     *metainfo.Info
	progressC chan Progress
	resultC   chan Result
}

// New starts allocating dir for info in a new goroutine and returns
// immediately.
func New(dir string, info *metainfo.Info, progressC chan Progress, resultC chan Result) *Allocator {
	a := &Allocator{dir: dir, info: info, progressC: progressC, resultC: resultC}
	go a.run()
	return a
}

func (a *Allocator) run() {
	fs, err := filestorage.Open(a.dir, a.info)
	if err != nil {
		a.resultC <- Result{Error: err}
		return
	}
	if a.progressC != nil {
		select {
		case a.progressC <- Progress{FilesAllocated: fileCount(a.info)}:
		default:
		}
	}
	a.resultC <- Result{Storage: fs}
}

func fileCount(info *metainfo.Info) int {
	if info.Multi() {
		return len(info.Files)
	}
	return 1
}
