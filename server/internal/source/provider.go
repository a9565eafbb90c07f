package source

import (
	"fmt"
	"net/http"
	"time"
)

const (
	BackendYouTube = "youtube"
	BackendYtDlp   = "ytdlp"
)

// NewHTTPClient bounds the time until response headers arrive, never the
// body: a stream may take hours.
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: t}
}

// NewProvider builds the lookup backend by name. ytdlpPath is only used by
// the yt-dlp backend.
func NewProvider(backend, ytdlpPath string, client *http.Client) (Provider, error) {
	switch backend {
	case BackendYouTube, "":
		return NewYouTube(client), nil
	case BackendYtDlp:
		return NewYtDlp(ytdlpPath, client), nil
	default:
		return nil, fmt.Errorf("unknown source backend %q", backend)
	}
}
