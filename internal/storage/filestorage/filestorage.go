// Package filestorage lays a torrent's single- or multi-file content out on
// disk as plain files under a data directory, addressed by the flat
// content offset used throughout the rest of the client.
package filestorage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nimbus-bt/nimbus/internal/metainfo"
)

type file struct {
	f        *os.File
	start    int64
	length   int64
}

// FileStorage implements storage.Storage over the real filesystem.
type FileStorage struct {
	files []file
	size  int64
}

// Open creates (if necessary) and opens every file the info dict describes,
// preallocating their final sizes, rooted at dir.
func Open(dir string, info *metainfo.Info) (*FileStorage, error) {
	paths := info.FilePaths()
	fs := &FileStorage{size: info.GetSize()}

	if info.Multi() {
		for i, p := range paths {
			full := filepath.Join(dir, p)
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return nil, err
			}
			f, err := openSized(full, info.Files[i].Length)
			if err != nil {
				return nil, err
			}
			fs.files = append(fs.files, file{f: f, start: info.Files[i].CumStart, length: info.Files[i].Length})
		}
		return fs, nil
	}

	full := filepath.Join(dir, paths[0])
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	f, err := openSized(full, info.Length)
	if err != nil {
		return nil, err
	}
	fs.files = append(fs.files, file{f: f, start: 0, length: info.Length})
	return fs, nil
}

func openSized(path string, length int64) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < length {
		if err := f.Truncate(length); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// ReadAt and WriteAt accept byte ranges that may span multiple underlying
// files in a multi-file torrent; each splits its request at file
// boundaries and recurses into the per-file *os.File.ReadAt/WriteAt.
func (fs *FileStorage) ReadAt(p []byte, off int64) (int, error) {
	return fs.do(p, off, (*os.File).ReadAt)
}

func (fs *FileStorage) WriteAt(p []byte, off int64) (int, error) {
	return fs.do(p, off, (*os.File).WriteAt)
}

func (fs *FileStorage) do(p []byte, off int64, op func(*os.File, []byte, int64) (int, error)) (int, error) {
	if off < 0 || off+int64(len(p)) > fs.size {
		return 0, fmt.Errorf("filestorage: range [%d,%d) out of bounds [0,%d)", off, off+int64(len(p)), fs.size)
	}
	total := 0
	for len(p) > 0 {
		idx := fs.fileAt(off)
		f := fs.files[idx]
		local := off - f.start
		n := int64(len(p))
		if local+n > f.length {
			n = f.length - local
		}
		got, err := op(f.f, p[:n], local)
		total += got
		if err != nil {
			return total, err
		}
		p = p[n:]
		off += n
	}
	return total, nil
}

func (fs *FileStorage) fileAt(off int64) int {
	for i, f := range fs.files {
		if off >= f.start && off < f.start+f.length {
			return i
		}
	}
	return len(fs.files) - 1
}

// Close flushes and closes every underlying file.
func (fs *FileStorage) Close() error {
	var first error
	for _, f := range fs.files {
		if err := f.f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
