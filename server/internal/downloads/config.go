package downloads

import (
	"context"
	"fmt"
	"os"

	"github.com/asaskevich/EventBus"
	"github.com/marcopiovanello/ytdl-eta/server/archiver"
	"github.com/marcopiovanello/ytdl-eta/server/config"
	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
	"github.com/marcopiovanello/ytdl-eta/server/internal/transport"
)

// FromConfig wires the lookup backend, its cache, the file transport and
// the optional archive bucket. The returned function releases the bucket.
func FromConfig(ctx context.Context, conf *config.Config, bus EventBus.Bus) (*Manager, func(), error) {
	provider, err := source.NewProvider(
		conf.Source.Backend,
		conf.Paths.DownloaderPath,
		source.NewHTTPClient(conf.Source.Timeout),
	)
	if err != nil {
		return nil, nil, err
	}

	cache, err := source.NewCache(provider, conf.Source.CacheSize)
	if err != nil {
		return nil, nil, err
	}

	chunkSize, err := conf.ChunkBytes()
	if err != nil {
		return nil, nil, err
	}
	rateLimit, err := conf.RateLimitBytes()
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(conf.Paths.DownloadPath, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating download directory: %w", err)
	}

	opts := []Option{WithDirectory(conf.Paths.DownloadPath)}
	release := func() {}

	if conf.Archive.BucketURL != "" {
		a, err := archiver.Open(ctx, conf.Archive.BucketURL, conf.Archive.RemoveLocal)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, WithArchiver(a))
		release = func() { a.Close() }
	}

	tr := transport.NewFile(transport.Options{ChunkSize: chunkSize, RateLimit: rateLimit})

	return New(cache, tr, bus, opts...), release, nil
}
