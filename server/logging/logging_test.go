package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/ytdl-eta/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotableLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l, err := NewRotableLogger(path)
	require.NoError(t, err)
	defer l.Close()

	l.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

	// nothing to rotate yet
	require.NoError(t, l.Rotate())
	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Len(t, entries, 1)

	_, err = l.Write([]byte("first\n"))
	require.NoError(t, err)
	require.NoError(t, l.Rotate())

	_, err = l.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, l.Rotate())

	rotated, err := os.ReadFile(filepath.Join(filepath.Dir(path), "app.2024-03-01T10-00-00.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(rotated))

	rotated, err = os.ReadFile(filepath.Join(filepath.Dir(path), "app.2024-03-01T10-00-00.1.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(rotated))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestRotableLoggerKeepsWritingAfterFailedRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := NewRotableLogger(path)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Write([]byte("before\n"))
	require.NoError(t, err)

	denied := errors.New("permission denied")
	l.rename = func(string, string) error { return denied }
	assert.ErrorIs(t, l.Rotate(), denied)

	_, err = l.Write([]byte("after\n"))
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "before\nafter\n", string(b))
}

func TestObservableLogger(t *testing.T) {
	o := NewObservableLogger()

	n, err := o.Write([]byte("nobody listens\n"))
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	lines, release := o.Subscribe(1)
	_, _ = o.Write([]byte("one\n"))
	// buffer full, dropped
	_, _ = o.Write([]byte("two\n"))

	assert.Equal(t, "one\n", string(<-lines))
	release()
	release()

	_, ok := <-lines
	assert.False(t, ok)
}

func TestSetupWritesFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "app.log")
	cleanup, err := Setup(context.Background(), config.LoggingConfig{
		LogPath:           path,
		EnableFileLogging: true,
		Level:             "debug",
	}, nil)
	require.NoError(t, err)

	slog.Debug("hello", slog.String("k", "v"))
	cleanup()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "msg=hello k=v")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSSE(t *testing.T) {
	o := NewObservableLogger()
	r := chi.NewRouter()
	r.Route("/log", ApplyRouter(o))

	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/log/sse", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	// the handler subscribes after the headers are written
	go func() {
		for i := 0; ctx.Err() == nil; i++ {
			fmt.Fprintf(o, "line %d\n", i)
			time.Sleep(10 * time.Millisecond)
		}
	}()

	line, err := bufio.NewReader(res.Body).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: line "))
}
