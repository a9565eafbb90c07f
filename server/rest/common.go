package rest

import (
	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
	"github.com/marcopiovanello/ytdl-eta/server/internal/progress"
	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
)

type ContainerArgs struct {
	DM *downloads.Manager
}

type LookupRequest struct {
	URL string `json:"url"`
}

type VideoInfo struct {
	URL          string        `json:"url"`
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Author       string        `json:"author"`
	Views        int           `json:"views"`
	ViewsLabel   string        `json:"views_label"`
	Duration     int           `json:"duration_seconds"`
	LengthLabel  string        `json:"length_label"`
	ThumbnailURL string        `json:"thumbnail_url"`
	Variants     []VariantInfo `json:"variants"`
}

type VariantInfo struct {
	Label      string `json:"label"`
	Resolution string `json:"resolution"`
	Format     string `json:"format"`
	SizeBytes  int64  `json:"size_bytes"`
	Size       string `json:"size"`
}

type StartResponse struct {
	ID string `json:"id"`
}

// Status is the current download with the labels the page renders as is.
type Status struct {
	progress.Snapshot
	Title           string `json:"title"`
	Variant         string `json:"variant"`
	PercentageLabel string `json:"percentage_label"`
	TimeLeftLabel   string `json:"time_left_label"`
	Received        string `json:"received"`
	Total           string `json:"total"`
}

type ReportResponse struct {
	progress.Report `yaml:",inline"`
	Summary         progress.Summary `json:"summary" yaml:"summary"`
}

func videoInfo(v *source.Video) VideoInfo {
	info := VideoInfo{
		URL:          v.URL,
		ID:           v.ID,
		Title:        v.Title,
		Author:       v.Author,
		Views:        v.Views,
		ViewsLabel:   progress.FormatViews(v.Views),
		Duration:     v.DurationSeconds,
		LengthLabel:  progress.FormatLength(v.DurationSeconds),
		ThumbnailURL: v.ThumbnailURL,
		Variants:     make([]VariantInfo, 0, len(v.Variants)),
	}
	for _, variant := range v.Variants {
		info.Variants = append(info.Variants, VariantInfo{
			Label:      variant.Label(),
			Resolution: variant.Resolution,
			Format:     variant.ContainerFormat,
			SizeBytes:  variant.SizeBytes,
			Size:       humanBytes(variant.SizeBytes),
		})
	}
	return info
}
