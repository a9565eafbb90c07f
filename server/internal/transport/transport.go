// Package transport streams a variant to disk, reporting progress after
// every chunk.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
	"golang.org/x/time/rate"
)

const (
	DefaultChunkSize = 1 << 20
	partSuffix       = ".part"
)

var ErrInsufficientSpace = errors.New("not enough free space")

// ProgressFunc is called after every chunk written with the chunk size and
// the number of bytes still expected.
type ProgressFunc func(chunk, remaining int64)

type Transport interface {
	Fetch(ctx context.Context, h source.Handle, dest string, onProgress ProgressFunc) error
}

type Options struct {
	// ChunkSize is the number of bytes read between progress callbacks.
	ChunkSize int

	// RateLimit caps the throughput in bytes per second, 0 means unlimited.
	RateLimit int64
}

// File writes the stream into dest. The data is staged in dest.part and
// only renamed once the whole stream has been received, so a failed or
// stopped download never leaves a file that looks complete.
type File struct {
	chunkSize int
	limiter   *rate.Limiter
}

func NewFile(opts Options) *File {
	f := &File{chunkSize: opts.ChunkSize}
	if f.chunkSize <= 0 {
		f.chunkSize = DefaultChunkSize
	}
	if opts.RateLimit > 0 {
		burst := max(f.chunkSize, int(opts.RateLimit))
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return f
}

func (f *File) Fetch(ctx context.Context, h source.Handle, dest string, onProgress ProgressFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	stream, size, err := h.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if size <= 0 {
		return errors.New("stream size unknown")
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := checkFreeSpace(dir, size); err != nil {
		return err
	}

	part := dest + partSuffix
	file, err := os.Create(part)
	if err != nil {
		return err
	}

	defer func() {
		if err == nil {
			return
		}
		file.Close()
		if rmErr := os.Remove(part); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}()

	slog.Info("transfer started",
		slog.String("dest", dest),
		slog.Int64("size", size),
		slog.Int("chunk_size", f.chunkSize),
	)

	if err := f.copy(ctx, file, stream, size, onProgress); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(part, dest)
}

func (f *File) copy(ctx context.Context, w io.Writer, r io.Reader, size int64, onProgress ProgressFunc) error {
	var (
		buf       = make([]byte, f.chunkSize)
		remaining = size
	)

	for remaining > 0 {
		// the stop request is honored between chunks
		if err := ctx.Err(); err != nil {
			return err
		}

		want := int(min(int64(len(buf)), remaining))
		n, readErr := io.ReadFull(r, buf[:want])

		if n > 0 {
			if f.limiter != nil {
				if err := f.limiter.WaitN(ctx, n); err != nil {
					return err
				}
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			remaining -= int64(n)
			if onProgress != nil {
				onProgress(int64(n), remaining)
			}
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			if remaining > 0 {
				return fmt.Errorf("stream ended with %d bytes missing: %w", remaining, io.ErrUnexpectedEOF)
			}
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return readErr
		}
	}

	return nil
}
