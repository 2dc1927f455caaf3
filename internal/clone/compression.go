package clone

import (
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}

// Extension returns the file extension appended for a compression algorithm.
// The empty algorithm means a plain raw image.
func Extension(algorithm string) (string, error) {
	switch algorithm {
	case "":
		return "", nil
	case "gzip":
		return ".gz", nil
	case "zlib":
		return ".zlib", nil
	case "bzip2":
		return ".bz2", nil
	case "snappy":
		return ".snappy", nil
	case "s2":
		return ".s2", nil
	case "zstd":
		return ".zst", nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// newCompressor wraps output for algorithm. Closing the result flushes the
// compressed stream but leaves output open.
func newCompressor(algorithm string, output io.Writer) (io.WriteCloser, error) {
	switch algorithm {
	case "":
		return nopCloser{output}, nil
	case "gzip":
		return gzip.NewWriter(output), nil
	case "zlib":
		return zlib.NewWriter(output), nil
	case "bzip2":
		return bzip2.NewWriter(output, &bzip2.WriterConfig{})
	case "snappy":
		return snappy.NewBufferedWriter(output), nil
	case "s2":
		return s2.NewWriter(output), nil
	case "zstd":
		return zstd.NewWriter(output)
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// newDecompressor is the reading counterpart of newCompressor.
func newDecompressor(algorithm string, input io.Reader) (io.ReadCloser, error) {
	switch algorithm {
	case "":
		return io.NopCloser(input), nil
	case "gzip":
		return gzip.NewReader(input)
	case "zlib":
		return zlib.NewReader(input)
	case "bzip2":
		return bzip2.NewReader(input, &bzip2.ReaderConfig{})
	case "snappy":
		return io.NopCloser(snappy.NewReader(input)), nil
	case "s2":
		return io.NopCloser(s2.NewReader(input)), nil
	case "zstd":
		d, err := zstd.NewReader(input)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}
