// Package archiver copies completed downloads into a blob bucket.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

type Archiver struct {
	bucket      *blob.Bucket
	removeLocal bool
}

// Open connects to the bucket behind url, e.g. "file:///srv/archive",
// "s3://bucket?region=eu-west-1" or "mem://".
func Open(ctx context.Context, url string, removeLocal bool) (*Archiver, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("opening archive bucket: %w", err)
	}
	return New(bucket, removeLocal), nil
}

func New(bucket *blob.Bucket, removeLocal bool) *Archiver {
	return &Archiver{bucket: bucket, removeLocal: removeLocal}
}

// Archive uploads the file at path under key.
func (a *Archiver) Archive(ctx context.Context, path, key string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := a.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, f); err != nil {
		return errors.Join(err, w.Close())
	}
	if err := w.Close(); err != nil {
		return err
	}

	slog.Info("archived download", slog.String("path", path), slog.String("key", key))

	if a.removeLocal {
		return os.Remove(path)
	}
	return nil
}

func (a *Archiver) Exists(ctx context.Context, key string) (bool, error) {
	return a.bucket.Exists(ctx, key)
}

func (a *Archiver) Close() error { return a.bucket.Close() }
