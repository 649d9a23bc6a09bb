package pipeline

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Upload is one client-supplied file. Open is called at most once.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// BytesUpload wraps an in-memory file.
func BytesUpload(filename string, data []byte) Upload {
	return Upload{
		Filename: filename,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileUpload wraps a file on disk; the base name is reported as filename.
func FileUpload(path string) Upload {
	return Upload{
		Filename: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Outcome pairs an upload with its prediction or the error that stopped it.
// Exactly one of Prediction and Err is set.
type Outcome struct {
	Filename   string
	Prediction *Prediction
	Err        error
}
