package rawio

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ChunkSize is the default unit of device I/O.
const ChunkSize = 1024 * 1024

// Device is a raw device or image opened for chunked access.
type Device interface {
	io.ReadWriteSeeker
	io.Closer
}

// IOError is a fatal read, write or seek failure.
type IOError struct {
	Op     string
	Offset int64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s failed at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Copier moves data in fixed-size chunks.
type Copier struct {
	ChunkSize int
	// Progress, if set, is called after every chunk with the running total.
	Progress func(copied int64)
}

// Copy reads from src into dst until maxBytes have been copied or src is
// exhausted. A negative maxBytes means no limit. Interrupted system calls are
// retried; any other error stops the copy.
func (c *Copier) Copy(ctx context.Context, dst io.Writer, src io.Reader, maxBytes int64) (int64, error) {
	size := c.ChunkSize
	if size <= 0 {
		size = ChunkSize
	}
	buf := GetBuffer(size)
	defer PutBuffer(buf)

	var copied int64
	for maxBytes < 0 || copied < maxBytes {
		if err := ctx.Err(); err != nil {
			return copied, err
		}

		chunk := buf
		if maxBytes >= 0 && maxBytes-copied < int64(len(chunk)) {
			chunk = chunk[:maxBytes-copied]
		}

		n, err := CopyChunk(dst, src, chunk, copied)
		copied += int64(n)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return copied, err
		}
		if c.Progress != nil {
			c.Progress(copied)
		}
	}
	return copied, nil
}

// CopyChunk performs one read of up to len(buf) bytes from src and writes
// exactly what was read to dst. offset is only used for error reports. It
// returns 0, io.EOF when src is exhausted.
func CopyChunk(dst io.Writer, src io.Reader, buf []byte, offset int64) (int, error) {
	var n int
	for {
		var err error
		n, err = src.Read(buf)
		if n > 0 {
			break
		}
		if err == nil {
			// Zero-length read without error: treat as end of data.
			return 0, io.EOF
		}
		if err == io.EOF {
			return 0, io.EOF
		}
		if isTransient(err) {
			continue
		}
		return 0, &IOError{Op: "read", Offset: offset, Err: err}
	}

	if err := writeFull(dst, buf[:n], offset); err != nil {
		return 0, err
	}
	return n, nil
}

func writeFull(dst io.Writer, data []byte, offset int64) error {
	off := 0
	for off < len(data) {
		n, err := dst.Write(data[off:])
		if n > 0 {
			off += n
		}
		if err != nil {
			if isTransient(err) {
				continue
			}
			return &IOError{Op: "write", Offset: offset + int64(off), Err: err}
		}
		if n == 0 {
			return &IOError{Op: "write", Offset: offset + int64(off), Err: io.ErrShortWrite}
		}
	}
	return nil
}

// Rewind seeks a device back to byte 0.
func Rewind(s io.Seeker) error {
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return &IOError{Op: "seek", Offset: 0, Err: err}
	}
	return nil
}
