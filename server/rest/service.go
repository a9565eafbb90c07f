package rest

import (
	"context"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
	"github.com/marcopiovanello/ytdl-eta/server/internal/progress"
)

type Service struct {
	dm *downloads.Manager
}

func NewService(dm *downloads.Manager) *Service {
	return &Service{dm: dm}
}

func (s *Service) Lookup(ctx context.Context, url string) (*VideoInfo, error) {
	video, err := s.dm.Lookup(ctx, url)
	if err != nil {
		return nil, err
	}
	info := videoInfo(video)
	return &info, nil
}

func (s *Service) Start(ctx context.Context, req downloads.Request) (uuid.UUID, error) {
	d, err := s.dm.Start(ctx, req)
	if err != nil {
		return uuid.Nil, err
	}
	return d.ID(), nil
}

func (s *Service) Stop(ctx context.Context) (*Status, error) {
	d, err := s.dm.Stop()
	if err != nil {
		return nil, err
	}
	return status(d), nil
}

func (s *Service) Status(ctx context.Context) (*Status, error) {
	d, err := s.dm.Current()
	if err != nil {
		return nil, err
	}
	return status(d), nil
}

func (s *Service) Observations(ctx context.Context) ([]progress.Observation, error) {
	d, err := s.dm.Current()
	if err != nil {
		return nil, err
	}
	return d.Session().Observations(), nil
}

// Report is only available for a download that completed with plots enabled.
func (s *Service) Report(ctx context.Context) (*ReportResponse, error) {
	d, err := s.dm.Current()
	if err != nil {
		return nil, err
	}
	report, ok := d.Session().Report()
	if !ok {
		return nil, downloads.ErrNotCompleted
	}
	return &ReportResponse{
		Report:  *report,
		Summary: progress.Summarize(slices.Values(report.Deviations)),
	}, nil
}

// File returns the path of the current download once it completed.
func (s *Service) File(ctx context.Context) (string, error) {
	d, err := s.dm.Current()
	if err != nil {
		return "", err
	}
	return s.dm.File(d.ID())
}

func (s *Service) Cleanup(ctx context.Context) error {
	d, err := s.dm.Current()
	if err != nil {
		return err
	}
	return s.dm.Cleanup(d.ID())
}

func status(d *downloads.Download) *Status {
	snap := d.Session().Snapshot()
	return &Status{
		Snapshot:        snap,
		Title:           d.Video().Title,
		Variant:         d.Variant().Label(),
		PercentageLabel: progress.FormatPercentage(snap.Percentage),
		TimeLeftLabel:   progress.FormatSeconds(snap.TimeLeft),
		Received:        humanBytes(snap.BytesReceived),
		Total:           humanBytes(snap.TotalBytes),
	}
}

func humanBytes(n int64) string {
	return humanize.Bytes(uint64(max(n, 0)))
}
