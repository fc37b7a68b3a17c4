package session

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// File is an opaque reference to the file under analysis.
type File interface {
	// Name is the base file name sent to the analysis service.
	Name() string
	// Open returns a fresh reader over the file contents.
	Open() (io.ReadCloser, error)
}

// LocalFile references a file on disk.
type LocalFile struct {
	Path string
}

// NewLocalFile returns a File for path.
func NewLocalFile(path string) LocalFile {
	return LocalFile{Path: path}
}

// Name returns the base name of the path.
func (f LocalFile) Name() string {
	return filepath.Base(f.Path)
}

// Open opens the file for reading.
func (f LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// MemoryFile is an in-memory File, mostly useful in tests.
type MemoryFile struct {
	FileName string
	Data     []byte
}

// NewMemoryFile returns a File holding data.
func NewMemoryFile(name string, data []byte) MemoryFile {
	return MemoryFile{FileName: name, Data: data}
}

// Name returns the configured file name.
func (f MemoryFile) Name() string {
	return f.FileName
}

// Open returns a reader over a copy-free view of the data.
func (f MemoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}
