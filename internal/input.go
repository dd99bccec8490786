package internal

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/valyala/bytebufferpool"
)

// DefaultMaxInputSize bounds how much of a single file or stdin is read.
const DefaultMaxInputSize int64 = 10 * 1024 * 1024

var inputPool bytebufferpool.Pool

// ReadInput reads path, or stdin when path is "-", refusing inputs larger
// than maxSize bytes. The pooled read buffer is returned to the pool and the
// caller receives its own copy.
func ReadInput(path string, maxSize int64) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	return readLimited(r, path, maxSize)
}

func readLimited(r io.Reader, name string, maxSize int64) ([]byte, error) {
	buf := inputPool.Get()
	defer inputPool.Put(buf)

	if _, err := buf.ReadFrom(io.LimitReader(r, safeLimitSize(maxSize))); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if int64(buf.Len()) > maxSize {
		return nil, fmt.Errorf("reading %s: input exceeds %d bytes", name, maxSize)
	}
	return bytes.Clone(buf.B), nil
}
