package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// YouTube resolves videos with the native YouTube client, no external
// binary required.
type YouTube struct {
	client *youtube.Client
}

func NewYouTube(httpClient *http.Client) *YouTube {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &YouTube{
		client: &youtube.Client{HTTPClient: httpClient},
	}
}

var youtubeHosts = []string{"youtube.com", "music.youtube.com", "youtu.be"}

// checkYouTubeHost rejects URLs pointing anywhere but YouTube. A bare video
// id has no host and is left to the id extraction.
func checkYouTubeHost(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(u.Hostname(), "www."), "m.")
	if !slices.Contains(youtubeHosts, strings.ToLower(host)) {
		return fmt.Errorf("%w: %q is not a youtube host", ErrInvalidURL, u.Hostname())
	}
	return nil
}

func (y *YouTube) Lookup(ctx context.Context, rawURL string) (*Video, error) {
	if err := checkYouTubeHost(rawURL); err != nil {
		return nil, err
	}

	id, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	v, err := y.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	video := &Video{
		URL:             rawURL,
		ID:              v.ID,
		Title:           v.Title,
		Author:          v.Author,
		Views:           v.Views,
		DurationSeconds: int(v.Duration.Seconds()),
		ThumbnailURL:    largestThumbnail(v.Thumbnails),
	}

	seen := make(map[string]bool)
	for i := range v.Formats {
		f := &v.Formats[i]

		// progressive only: both an audio track and a picture
		if f.AudioChannels == 0 || f.Width == 0 || f.Height == 0 {
			continue
		}
		if f.ContentLength <= 0 {
			continue
		}

		variant := Variant{
			Resolution:      f.QualityLabel,
			ContainerFormat: mimeToExt(f.MimeType),
			SizeBytes:       f.ContentLength,
			Handle: &youtubeHandle{
				client: y.client,
				video:  v,
				format: f,
			},
		}
		if variant.Resolution == "" {
			variant.Resolution = fmt.Sprintf("%dp", f.Height)
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

func largestThumbnail(thumbs youtube.Thumbnails) string {
	if len(thumbs) == 0 {
		return ""
	}
	best := slices.MaxFunc(thumbs, func(a, b youtube.Thumbnail) int {
		return int(a.Width*a.Height) - int(b.Width*b.Height)
	})
	return best.URL
}

type youtubeHandle struct {
	client *youtube.Client
	video  *youtube.Video
	format *youtube.Format
}

func (h *youtubeHandle) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	return h.client.GetStreamContext(ctx, h.video, h.format)
}
