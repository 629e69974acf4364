package convert

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Source is one named input of a conversion batch.
type Source interface {
	// Name is the file name the format is detected from.
	Name() string
	Open() (io.ReadCloser, error)
}

// FileSource reads an export from the filesystem.
type FileSource string

func (p FileSource) Name() string { return filepath.Base(string(p)) }

func (p FileSource) Open() (io.ReadCloser, error) { return os.Open(string(p)) }

// BytesSource is an export already held in memory.
type BytesSource struct {
	Filename string
	Data     []byte
}

func (b BytesSource) Name() string { return b.Filename }

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

func sourceNames(sources []Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return names
}
