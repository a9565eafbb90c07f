// Package source resolves a video URL into metadata and downloadable
// progressive variants.
package source

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrInvalidURL        = errors.New("invalid video URL")
	ErrUnavailable       = errors.New("video not available")
	ErrNoMatchingVariant = errors.New("no variant matches the requested quality")
)

// Handle opens the byte stream of a variant. It is opaque to everything but
// the transport.
type Handle interface {
	// Open returns the stream and its size in bytes, or -1 when the size is
	// unknown.
	Open(ctx context.Context) (io.ReadCloser, int64, error)
}

type Provider interface {
	Lookup(ctx context.Context, url string) (*Video, error)
}

type Video struct {
	URL             string    `json:"url"`
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Views           int       `json:"views"`
	DurationSeconds int       `json:"duration_seconds"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	Variants        []Variant `json:"variants"`
}

// Variant is a progressive stream: audio and video muxed together.
type Variant struct {
	Resolution      string `json:"resolution"`
	ContainerFormat string `json:"container_format"`
	SizeBytes       int64  `json:"size_bytes"`
	Handle          Handle `json:"-"`
}

// Label is the "<resolution> <format>" string the user picks from.
func (v Variant) Label() string {
	return v.Resolution + " " + v.ContainerFormat
}

// Variant finds the variant with the given resolution and container format.
func (v *Video) Variant(resolution, format string) (Variant, error) {
	for _, variant := range v.Variants {
		if strings.EqualFold(variant.Resolution, resolution) &&
			strings.EqualFold(variant.ContainerFormat, format) {
			return variant, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: %s %s", ErrNoMatchingVariant, resolution, format)
}

// ParseLabel splits a "720p mp4" label into resolution and format.
func ParseLabel(label string) (resolution, format string, ok bool) {
	fields := strings.Fields(label)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

// sortVariants orders variants by resolution, highest first.
func sortVariants(variants []Variant) {
	slices.SortStableFunc(variants, func(a, b Variant) int {
		return cmp.Compare(resolutionHeight(b.Resolution), resolutionHeight(a.Resolution))
	})
}

// resolutionHeight extracts 720 from "720p", "720p60" or "1280x720".
func resolutionHeight(resolution string) int {
	if _, h, ok := strings.Cut(resolution, "x"); ok {
		n, _ := strconv.Atoi(h)
		return n
	}
	digits := resolution
	if i := strings.IndexFunc(resolution, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = resolution[:i]
	}
	n, _ := strconv.Atoi(digits)
	return n
}

// mimeToExt turns `video/mp4; codecs="avc1"` into "mp4".
func mimeToExt(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(mime), "/")
	if !ok {
		return ""
	}
	return sub
}
