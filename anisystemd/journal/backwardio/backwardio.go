// Package backwardio implements a buffered reader that reads delimited tokens
// from the end of a file towards its start.
package backwardio

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var maxTok = bufio.MaxScanTokenSize

// BackwardsReader is a reader that reads backwards, similar to bufio except
// things are scanned backwards.
type BackwardsReader struct {
	r    io.ReadSeeker
	buf  []byte // unconsumed bytes ending at the last token boundary
	off  int64  // file offset of buf[0]
	init bool
}

// NewBackwardsReader creates a reader that starts at the end of r.
func NewBackwardsReader(r io.ReadSeeker) *BackwardsReader {
	return &BackwardsReader{r: r}
}

// ReadUntil returns the token after the last remaining delimiter, without the
// delimiter itself. Once the start of the reader is reached, what is left is
// returned as the final token, after which io.EOF is returned. A token longer
// than bufio.MaxScanTokenSize results in bufio.ErrTooLong.
func (r *BackwardsReader) ReadUntil(delim byte) ([]byte, error) {
	if !r.init {
		end, err := r.r.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, errors.Wrap(err, "failed to find end of file")
		}

		r.off = end
		r.init = true
	}

	for {
		if i := bytes.LastIndexByte(r.buf, delim); i >= 0 {
			tok := r.buf[i+1:]
			r.buf = r.buf[:i]
			return tok, nil
		}

		if r.off == 0 {
			// Reached the start. A nil buffer means the first token has
			// already been handed out.
			if r.buf == nil {
				return nil, io.EOF
			}

			tok := r.buf
			r.buf = nil
			return tok, nil
		}

		if len(r.buf) >= maxTok {
			// The whole buffer is one token and there's still more before it.
			return nil, bufio.ErrTooLong
		}

		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

// fill prepends the chunk of the reader right before the buffer.
func (r *BackwardsReader) fill() error {
	n := int64(maxTok - len(r.buf))
	if n > r.off {
		n = r.off
	}

	start := r.off - n

	if _, err := r.r.Seek(start, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to seek backwards")
	}

	buf := make([]byte, int(n)+len(r.buf))
	if _, err := io.ReadFull(r.r, buf[:n]); err != nil {
		return errors.Wrap(err, "failed to read seeked chunk")
	}

	copy(buf[n:], r.buf)

	r.buf = buf
	r.off = start

	return nil
}
