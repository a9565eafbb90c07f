package rpc

import (
	"context"
	"time"

	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
	"github.com/marcopiovanello/ytdl-eta/server/internal/progress"
	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
)

const lookupTimeout = time.Second * 30

type Service struct {
	dm *downloads.Manager
}

type NoArgs struct{}

type LookupArgs struct {
	URL string `json:"url"`
}

// Lookup resolves the metadata and the downloadable variants of a video.
func (s *Service) Lookup(args LookupArgs, result *source.Video) error {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	video, err := s.dm.Lookup(ctx, args.URL)
	if err != nil {
		return err
	}

	*result = *video
	return nil
}

// Start begins a download. The result is the id of the new session.
func (s *Service) Start(args downloads.Request, result *string) error {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	d, err := s.dm.Start(ctx, args)
	if err != nil {
		return err
	}

	*result = d.ID().String()
	return nil
}

// Stop asks the active download to stop.
func (s *Service) Stop(args NoArgs, result *progress.Snapshot) error {
	d, err := s.dm.Stop()
	if err != nil {
		return err
	}

	*result = d.Session().Snapshot()
	return nil
}

// Progress retrieves the state of the current download.
func (s *Service) Progress(args NoArgs, result *progress.Snapshot) error {
	d, err := s.dm.Current()
	if err != nil {
		return err
	}

	*result = d.Session().Snapshot()
	return nil
}

func (s *Service) Observations(args NoArgs, result *[]progress.Observation) error {
	d, err := s.dm.Current()
	if err != nil {
		return err
	}

	*result = d.Session().Observations()
	return nil
}

func (s *Service) Report(args NoArgs, result *progress.Report) error {
	d, err := s.dm.Current()
	if err != nil {
		return err
	}

	report, ok := d.Session().Report()
	if !ok {
		return downloads.ErrNotCompleted
	}

	*result = *report
	return nil
}
