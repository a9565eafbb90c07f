// Package downloads runs one download at a time and owns its progress
// session from the start intent to a terminal state.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/marcopiovanello/ytdl-eta/server/internal/progress"
	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
	"github.com/marcopiovanello/ytdl-eta/server/internal/transport"
)

const (
	// TopicUpdate carries a progress.Update after every progress event.
	TopicUpdate = "download:update"
	// TopicState carries a progress.Update whenever the state changes.
	TopicState = "download:state"
)

var (
	ErrNoDownload   = errors.New("no download")
	ErrNotActive    = errors.New("download is not active")
	ErrNotCompleted = errors.New("download has not completed")
)

type Request struct {
	URL        string `json:"url"`
	Resolution string `json:"resolution"`
	Format     string `json:"format"`
	ShowPlots  bool   `json:"show_plots"`
}

type Archiver interface {
	Archive(ctx context.Context, path, key string) error
}

type Option func(*Manager)

func WithDirectory(dir string) Option {
	return func(m *Manager) { m.dir = dir }
}

func WithArchiver(a Archiver) Option {
	return func(m *Manager) { m.archiver = a }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type Manager struct {
	provider  source.Provider
	transport transport.Transport
	bus       EventBus.Bus
	archiver  Archiver
	dir       string
	now       func() time.Time

	mu      sync.Mutex
	current *Download
}

func New(p source.Provider, t transport.Transport, bus EventBus.Bus, opts ...Option) *Manager {
	m := &Manager{
		provider:  p,
		transport: t,
		bus:       bus,
		dir:       ".",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Lookup(ctx context.Context, url string) (*source.Video, error) {
	return m.provider.Lookup(ctx, url)
}

// Start begins a new download. Lookup and variant errors are returned
// before a session is created and leave any running download alone.
// Otherwise the previous download is stopped first and Start waits until
// it reached a terminal state.
func (m *Manager) Start(ctx context.Context, req Request) (*Download, error) {
	// resolved without the lock, a lookup may take up to the source timeout
	video, err := m.provider.Lookup(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	variant, err := video.Variant(req.Resolution, req.Format)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.current; prev != nil {
		select {
		case <-prev.done:
		default:
			slog.Info("stopping previous download", slog.String("id", prev.ID().String()))
			prev.cancel()
			<-prev.done
		}
	}

	session, err := progress.NewSession(variant.SizeBytes,
		progress.WithPlots(req.ShowPlots),
		progress.WithClock(m.now),
		progress.WithUpdateFunc(m.publisher()),
	)
	if err != nil {
		return nil, err
	}

	path, err := uniquePath(m.dir, CleanTitle(video.Title, session.ID()), variant.ContainerFormat)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d := &Download{
		session: session,
		video:   video,
		variant: variant,
		path:    path,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	if err := session.Start(); err != nil {
		cancel()
		return nil, err
	}
	m.current = d

	slog.Info("download started",
		slog.String("id", d.ID().String()),
		slog.String("url", req.URL),
		slog.String("variant", variant.Label()),
		slog.Bool("show_plots", req.ShowPlots),
	)

	go m.run(runCtx, d)

	return d, nil
}

// run drives the transport. The transport calls back into the session on
// this goroutine only.
func (m *Manager) run(ctx context.Context, d *Download) {
	defer close(d.done)
	defer d.cancel()

	h := &sizedHandle{Handle: d.variant.Handle, session: d.session}
	err := m.transport.Fetch(ctx, h, d.path, d.session.OnProgress)

	switch {
	case err == nil:
		if err := d.session.Complete(); err != nil {
			slog.Error("failed to complete session", slog.Any("err", err))
			return
		}
		slog.Info("download completed",
			slog.String("id", d.ID().String()),
			slog.Duration("elapsed", d.session.Elapsed()),
		)
		m.archive(d)

	case ctx.Err() != nil:
		d.session.Cancel()
		slog.Info("download stopped", slog.String("id", d.ID().String()))

	default:
		d.session.Fail(err)
		slog.Error("download failed", slog.String("id", d.ID().String()), slog.Any("err", err))
	}
}

func (m *Manager) archive(d *Download) {
	if m.archiver == nil {
		return
	}
	key := d.ID().String() + "/" + filepath.Base(d.path)
	if err := m.archiver.Archive(context.Background(), d.path, key); err != nil {
		slog.Error("failed to archive download", slog.String("id", d.ID().String()), slog.Any("err", err))
	}
}

// Stop asks the active download to stop. The transport notices it at the
// next chunk boundary; use Done to wait for it.
func (m *Manager) Stop() (*Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.current
	if d == nil {
		return nil, ErrNoDownload
	}
	if d.session.State() != progress.StateActive {
		return d, ErrNotActive
	}

	d.cancel()
	return d, nil
}

// Current returns the active download, or the last one if it ended.
func (m *Manager) Current() (*Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, ErrNoDownload
	}
	return m.current, nil
}

// File returns the path of a completed download.
func (m *Manager) File(id uuid.UUID) (string, error) {
	d, err := m.lookupID(id)
	if err != nil {
		return "", err
	}
	if d.session.State() != progress.StateCompleted {
		return "", ErrNotCompleted
	}
	if _, err := os.Stat(d.path); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoDownload, err)
	}
	return d.path, nil
}

// Cleanup removes the server side copy of a completed download.
func (m *Manager) Cleanup(id uuid.UUID) error {
	path, err := m.File(id)
	if err != nil {
		return err
	}
	slog.Info("removing downloaded file", slog.String("path", path))
	return os.Remove(path)
}

func (m *Manager) lookupID(id uuid.UUID) (*Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.ID() != id {
		return nil, ErrNoDownload
	}
	return m.current, nil
}

func (m *Manager) publisher() func(progress.Update) {
	last := progress.StateIdle
	return func(u progress.Update) {
		if m.bus == nil {
			return
		}
		m.bus.Publish(TopicUpdate, u)
		if u.State != last {
			last = u.State
			m.bus.Publish(TopicState, u)
		}
	}
}

// sizedHandle sizes the session from the stream the transport opens, which
// may differ from the size announced by the metadata.
type sizedHandle struct {
	source.Handle
	session *progress.Session
}

func (h *sizedHandle) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	r, size, err := h.Handle.Open(ctx)
	if err != nil || size <= 0 {
		return r, size, err
	}
	if size != h.session.Snapshot().TotalBytes {
		slog.Debug("stream size differs from metadata",
			slog.String("id", h.session.ID().String()),
			slog.Int64("size", size),
		)
		if err := h.session.Resize(size); err != nil {
			r.Close()
			return nil, 0, err
		}
	}
	return r, size, nil
}

// Download is the handle of one download run.
type Download struct {
	session *progress.Session
	video   *source.Video
	variant source.Variant
	path    string
	cancel  context.CancelFunc
	done    chan struct{}
}

func (d *Download) ID() uuid.UUID { return d.session.ID() }

func (d *Download) Session() *progress.Session { return d.session }

func (d *Download) Video() *source.Video { return d.video }

func (d *Download) Variant() source.Variant { return d.variant }

func (d *Download) Path() string { return d.path }

// Done is closed once the download reached a terminal state.
func (d *Download) Done() <-chan struct{} { return d.done }

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?* .,()\[\]{}]`)

// uniquePath picks dir/name.ext, numbering the name when a file of an
// earlier download is still there.
func uniquePath(dir, name, ext string) (string, error) {
	path := filepath.Join(dir, name+"."+ext)
	for i := 1; ; i++ {
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.%s", name, i, ext))
	}
}

// CleanTitle makes a video title safe to use as a file name.
func CleanTitle(title string, id uuid.UUID) string {
	if title == "" {
		return id.String()
	}
	return unsafeChars.ReplaceAllString(title, "_")
}
