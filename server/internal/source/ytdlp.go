package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"os/exec"
	"strings"
	"syscall"
)

// YtDlp resolves videos of any site supported by yt-dlp by asking the
// binary for the JSON description of the video. The streams themselves are
// fetched directly over HTTP.
type YtDlp struct {
	path   string
	client *http.Client
}

func NewYtDlp(path string, client *http.Client) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &YtDlp{path: path, client: client}
}

type ytdlpInfo struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Uploader   string        `json:"uploader"`
	Channel    string        `json:"channel"`
	ViewCount  int           `json:"view_count"`
	Duration   float64       `json:"duration"`
	Thumbnail  string        `json:"thumbnail"`
	WebpageURL string        `json:"webpage_url"`
	Formats    []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatID       string            `json:"format_id"`
	Ext            string            `json:"ext"`
	VCodec         string            `json:"vcodec"`
	ACodec         string            `json:"acodec"`
	Height         int               `json:"height"`
	Resolution     string            `json:"resolution"`
	FormatNote     string            `json:"format_note"`
	Filesize       int64             `json:"filesize"`
	FilesizeApprox int64             `json:"filesize_approx"`
	Protocol       string            `json:"protocol"`
	URL            string            `json:"url"`
	HTTPHeaders    map[string]string `json:"http_headers"`
}

func (f ytdlpFormat) progressive() bool {
	hasCodec := func(c string) bool { return c != "" && c != "none" }
	return hasCodec(f.VCodec) && hasCodec(f.ACodec) &&
		(f.Protocol == "https" || f.Protocol == "http")
}

func (y *YtDlp) Lookup(ctx context.Context, url string) (*Video, error) {
	if u, err := neturl.Parse(url); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}

	cmd := exec.CommandContext(ctx, y.path, url, "-J", "--no-playlist")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Info("retrieving metadata", slog.String("url", url), slog.String("downloader", y.path))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return y.parse(url, &stdout)
}

func (y *YtDlp) parse(url string, r io.Reader) (*Video, error) {
	var info ytdlpInfo
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding yt-dlp metadata: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("%w: no video in %s", ErrUnavailable, url)
	}

	author := info.Uploader
	if author == "" {
		author = info.Channel
	}

	video := &Video{
		URL:             url,
		ID:              info.ID,
		Title:           info.Title,
		Author:          author,
		Views:           info.ViewCount,
		DurationSeconds: int(info.Duration),
		ThumbnailURL:    info.Thumbnail,
	}

	seen := make(map[string]bool)
	for _, f := range info.Formats {
		if !f.progressive() {
			continue
		}

		size := f.Filesize
		if size <= 0 {
			size = f.FilesizeApprox
		}
		if size <= 0 || f.URL == "" {
			continue
		}

		resolution := f.Resolution
		if f.Height > 0 {
			resolution = fmt.Sprintf("%dp", f.Height)
		}

		variant := Variant{
			Resolution:      resolution,
			ContainerFormat: f.Ext,
			SizeBytes:       size,
			Handle: &httpHandle{
				client:  y.client,
				url:     f.URL,
				headers: f.HTTPHeaders,
				size:    size,
			},
		}
		if seen[variant.Label()] {
			continue
		}
		seen[variant.Label()] = true

		video.Variants = append(video.Variants, variant)
	}

	sortVariants(video.Variants)
	return video, nil
}

// httpHandle streams a direct media URL.
type httpHandle struct {
	client  *http.Client
	url     string
	headers map[string]string
	size    int64
}

func (h *httpHandle) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	size := resp.ContentLength
	if size < 0 {
		size = h.size
	}
	return resp.Body, size, nil
}
