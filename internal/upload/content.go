package upload

import (
	"fmt"
	"os"
)

// Content is the payload of an upload. Chunks are read by offset so a retried
// chunk is read again from the source instead of being buffered.
type Content interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
}

// File is a Content backed by a local file.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens path for uploading. The caller closes it once the upload is done.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &File{f: f, size: info.Size()}, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.f.ReadAt(p, off)
}

func (f *File) Size() int64 {
	return f.size
}

func (f *File) Name() string {
	return f.f.Name()
}

func (f *File) Close() error {
	return f.f.Close()
}
