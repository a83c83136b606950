package filelog

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// tailLines returns up to n non-empty lines from the end of r, oldest first.
// It reads backwards in chunkSize blocks and stops as soon as n lines are
// complete, so only the tail of a large file is touched.
func tailLines(r io.ReaderAt, size int64, n, chunkSize int) ([]string, error) {
	if n <= 0 || size <= 0 {
		return nil, nil
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	// newest first while scanning
	lines := make([]string, 0, n)
	chunk := make([]byte, chunkSize)
	var pending []byte
	offset := size

	for offset > 0 && len(lines) < n {
		readSize := int64(chunkSize)
		if offset < readSize {
			readSize = offset
		}
		offset -= readSize

		read, err := r.ReadAt(chunk[:readSize], offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		joined := make([]byte, 0, read+len(pending))
		joined = append(joined, chunk[:read]...)
		pending = append(joined, pending...)

		for len(lines) < n {
			idx := bytes.LastIndexByte(pending, '\n')
			if idx < 0 {
				break
			}
			if line := pending[idx+1:]; len(line) > 0 {
				lines = append(lines, toLine(line))
			}
			pending = pending[:idx]
		}

		if offset == 0 && len(pending) > 0 && len(lines) < n {
			lines = append(lines, toLine(pending))
			pending = nil
		}
	}

	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}

func toLine(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}
