package wipe

import (
	"encoding/binary"
	"io"
	"math/rand/v2"
)

// newStream returns the endless byte stream written by passes[index]. The
// stream is deterministic, so a fresh call regenerates the same bytes for
// verification.
func newStream(passes []Pass, index int) io.Reader {
	p := passes[index]
	switch p.Pattern {
	case PatternOnes:
		return constStream(0xFF)
	case PatternRandom:
		var seed [32]byte
		binary.LittleEndian.PutUint64(seed[:8], p.Seed)
		copy(seed[8:], "minuteman pass seed")
		return rand.NewChaCha8(seed)
	case PatternComplement:
		return complementStream{inner: newStream(passes, index-1)}
	default:
		return constStream(0x00)
	}
}

type constStream byte

func (c constStream) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

type complementStream struct {
	inner io.Reader
}

func (c complementStream) Read(p []byte) (int, error) {
	n, err := io.ReadFull(c.inner, p)
	for i := range p[:n] {
		p[i] = ^p[i]
	}
	return n, err
}

// verifier consumes read-back data and compares it against the expected
// stream.
type verifier struct {
	pass     int
	expected io.Reader
	buf      []byte
	offset   int64
}

func newVerifier(passes []Pass, index int, chunkSize int) *verifier {
	return &verifier{
		pass:     index,
		expected: newStream(passes, index),
		buf:      make([]byte, chunkSize),
	}
}

func (v *verifier) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > len(v.buf) {
			n = len(v.buf)
		}
		want := v.buf[:n]
		if _, err := io.ReadFull(v.expected, want); err != nil {
			return written, err
		}
		for i := 0; i < n; i++ {
			if p[i] != want[i] {
				return written + i, &VerificationMismatchError{
					Pass:   v.pass,
					Offset: v.offset + int64(i),
					Want:   want[i],
					Got:    p[i],
				}
			}
		}
		v.offset += int64(n)
		written += n
		p = p[n:]
	}
	return written, nil
}
