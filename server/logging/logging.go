package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/ytdl-eta/server/config"
)

// Setup installs the default slog logger writing to stdout, the given extra
// writers and, when enabled, a daily rotated log file. The returned function
// flushes and closes the log file.
func Setup(ctx context.Context, conf config.LoggingConfig, stdout io.Writer, extra ...io.Writer) (func(), error) {
	writers := append([]io.Writer{}, extra...)
	if stdout != nil {
		writers = append(writers, stdout)
	}

	cleanup := func() {}

	if conf.EnableFileLogging {
		logger, err := NewRotableLogger(conf.LogPath)
		if err != nil {
			return nil, err
		}

		go func() {
			ticker := time.NewTicker(time.Hour * 24)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := logger.Rotate(); err != nil {
						slog.Error("failed to rotate log file", slog.Any("err", err))
					}
				}
			}
		}()

		writers = append(writers, logger)
		cleanup = func() { logger.Close() }
	}

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: ParseLevel(conf.Level),
	}))
	slog.SetDefault(logger)

	return cleanup, nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ApplyRouter streams log lines as server sent events.
func ApplyRouter(o *ObservableLogger) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/sse", func(w http.ResponseWriter, r *http.Request) {
			flusher, ok := w.(http.Flusher)
			if !ok {
				http.Error(w, "streaming unsupported", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")

			lines, release := o.Subscribe(64)
			defer release()

			flusher.Flush()

			for {
				select {
				case <-r.Context().Done():
					return
				case line := <-lines:
					if _, err := io.WriteString(w, "data: "+strings.TrimRight(string(line), "\n")+"\n\n"); err != nil {
						return
					}
					flusher.Flush()
				}
			}
		})
	}
}

