package clone

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"minuteman/internal/logging"
	"minuteman/internal/rawio"
)

// Options control how an image is written.
type Options struct {
	// Compression is one of "", gzip, zlib, bzip2, snappy, s2, zstd.
	Compression string
	ChunkSize   int
	// Progress is called after every chunk with raw bytes copied and the
	// expected total.
	Progress func(copied, total int64)
	Logger   *logging.Logger
}

// Result describes a finished clone.
type Result struct {
	ImagePath string
	// BytesCopied counts raw device bytes read.
	BytesCopied int64
	// BytesWritten counts bytes stored in the image file.
	BytesWritten int64
	Duration     time.Duration
}

// Ratio is the compression ratio, raw over stored.
func (r Result) Ratio() float64 {
	if r.BytesWritten == 0 {
		return 0
	}
	return float64(r.BytesCopied) / float64(r.BytesWritten)
}

// CloneDeviceToImage copies up to byteLimit bytes from the start of the
// device into imagePath. A negative byteLimit copies the whole device. When
// compression is set its extension is appended to imagePath.
func CloneDeviceToImage(ctx context.Context, devicePath string, byteLimit int64, imagePath string, opts Options) (Result, error) {
	ext, err := Extension(opts.Compression)
	if err != nil {
		return Result{}, err
	}
	imagePath += ext

	src, size, err := rawio.OpenDevice(devicePath, false)
	if err != nil {
		return Result{}, err
	}
	defer src.Close()

	if err := rawio.Rewind(src); err != nil {
		return Result{}, err
	}

	total := size
	if byteLimit >= 0 && byteLimit < size {
		total = byteLimit
	}

	output, err := os.Create(imagePath)
	if err != nil {
		return Result{}, &rawio.IOError{Op: "create image", Offset: 0, Err: err}
	}
	defer output.Close()

	cw := &countingWriter{w: output}
	compressor, err := newCompressor(opts.Compression, cw)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create compression writer: %w", err)
	}

	opts.Logger.Log("INFO", "Clone started", "device", devicePath, "image", imagePath,
		"bytes", total, "compression", opts.Compression)

	copier := &rawio.Copier{ChunkSize: opts.ChunkSize}
	if opts.Progress != nil {
		copier.Progress = func(copied int64) { opts.Progress(copied, total) }
	}

	start := time.Now()
	copied, err := copier.Copy(ctx, compressor, src, byteLimit)
	if err != nil {
		compressor.Close()
		opts.Logger.Log("ERROR", "Clone failed", "device", devicePath, "copied", copied, "error", err)
		return Result{ImagePath: imagePath, BytesCopied: copied}, err
	}

	if err := compressor.Close(); err != nil {
		return Result{ImagePath: imagePath, BytesCopied: copied}, &rawio.IOError{Op: "flush image", Offset: copied, Err: err}
	}
	if err := output.Sync(); err != nil {
		return Result{ImagePath: imagePath, BytesCopied: copied}, &rawio.IOError{Op: "sync image", Offset: copied, Err: err}
	}

	res := Result{
		ImagePath:    imagePath,
		BytesCopied:  copied,
		BytesWritten: cw.count,
		Duration:     time.Since(start),
	}
	opts.Logger.Log("INFO", "Clone finished", "device", devicePath, "image", imagePath,
		"copied", copied, "stored", cw.count, "duration", res.Duration.Truncate(time.Millisecond))
	return res, nil
}

// VerifyImage decompresses an image and compares it with the first bytes of
// the device. It returns the number of bytes compared.
func VerifyImage(ctx context.Context, devicePath, imagePath, compression string) (int64, error) {
	src, _, err := rawio.OpenDevice(devicePath, false)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	f, err := os.Open(imagePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	image, err := newDecompressor(compression, f)
	if err != nil {
		return 0, err
	}
	defer image.Close()

	var (
		compared int64
		want     = rawio.GetBuffer(rawio.ChunkSize)
		got      = rawio.GetBuffer(rawio.ChunkSize)
	)
	defer rawio.PutBuffer(want)
	defer rawio.PutBuffer(got)

	for {
		if err := ctx.Err(); err != nil {
			return compared, err
		}
		n, err := io.ReadFull(image, got)
		if n > 0 {
			if _, rerr := io.ReadFull(src, want[:n]); rerr != nil {
				return compared, &rawio.IOError{Op: "read", Offset: compared, Err: rerr}
			}
			for i := 0; i < n; i++ {
				if want[i] != got[i] {
					return compared, fmt.Errorf("image differs from device at offset %d", compared+int64(i))
				}
			}
			compared += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return compared, nil
		}
		if err != nil {
			return compared, &rawio.IOError{Op: "read image", Offset: compared, Err: err}
		}
	}
}
