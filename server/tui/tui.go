// Package tui renders a single download in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/asaskevich/EventBus"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcopiovanello/ytdl-eta/server/config"
	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
	"github.com/marcopiovanello/ytdl-eta/server/internal/progress"
	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
)

type Options struct {
	URL string
	// Quality is a variant label such as "720p mp4". Empty picks the best
	// variant.
	Quality   string
	ShowPlots bool
	// Interactive selects the bubbletea program over line output.
	Interactive bool
	Output      io.Writer
}

var ErrInvalidQuality = errors.New("quality must look like \"720p mp4\"")

// RunWithConfig builds a download manager from conf and calls Run.
func RunWithConfig(ctx context.Context, conf *config.Config, opts Options) error {
	bus := EventBus.New()

	dm, release, err := downloads.FromConfig(ctx, conf, bus)
	if err != nil {
		return err
	}
	defer release()

	return Run(ctx, dm, bus, opts)
}

// Run looks the video up, then downloads it while showing progress.
func Run(ctx context.Context, dm *downloads.Manager, bus EventBus.Bus, opts Options) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	video, err := dm.Lookup(ctx, opts.URL)
	if err != nil {
		return err
	}

	variant, err := pickVariant(video, opts.Quality)
	if err != nil {
		return err
	}

	req := downloads.Request{
		URL:        opts.URL,
		Resolution: variant.Resolution,
		Format:     variant.ContainerFormat,
		ShowPlots:  opts.ShowPlots,
	}

	if !opts.Interactive {
		return runPlain(ctx, dm, bus, video, variant, req, opts.Output)
	}

	start := func() tea.Msg {
		d, err := dm.Start(ctx, req)
		if err != nil {
			return errMsg{err}
		}
		return startedMsg{d}
	}

	p := tea.NewProgram(
		NewModel(video, variant, start, dm),
		tea.WithContext(ctx),
		tea.WithOutput(opts.Output),
	)

	forward := func(u progress.Update) { p.Send(updateMsg(u)) }
	if err := bus.Subscribe(downloads.TopicUpdate, forward); err != nil {
		return err
	}
	defer bus.Unsubscribe(downloads.TopicUpdate, forward)

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	m, ok := final.(Model)
	if !ok {
		return err
	}
	if m.download != nil && !m.done {
		// killed by ctx while still running
		if _, err := dm.Stop(); err == nil {
			<-m.download.Done()
		}
	}
	if m.last.State == progress.StateErrored || (m.err != nil && m.download == nil) {
		return m.err
	}
	return nil
}

func pickVariant(video *source.Video, quality string) (source.Variant, error) {
	if quality == "" {
		if len(video.Variants) == 0 {
			return source.Variant{}, source.ErrNoMatchingVariant
		}
		return video.Variants[0], nil
	}

	resolution, format, ok := source.ParseLabel(quality)
	if !ok {
		return source.Variant{}, ErrInvalidQuality
	}
	return video.Variant(resolution, format)
}

// runPlain prints one line per state change and every tenth percent, for
// output that is not a terminal.
func runPlain(ctx context.Context, dm *downloads.Manager, bus EventBus.Bus, video *source.Video, variant source.Variant, req downloads.Request, out io.Writer) error {
	updates := make(chan progress.Update, 256)
	forward := func(u progress.Update) {
		select {
		case updates <- u:
		default:
		}
	}
	if err := bus.Subscribe(downloads.TopicUpdate, forward); err != nil {
		return err
	}
	defer bus.Unsubscribe(downloads.TopicUpdate, forward)

	fmt.Fprintf(out, "%s by %s, %s views, %s\n", video.Title, video.Author,
		progress.FormatViews(video.Views), progress.FormatLength(video.DurationSeconds))
	fmt.Fprintf(out, "downloading %s\n", variant.Label())

	d, err := dm.Start(ctx, req)
	if err != nil {
		return err
	}

	lastStep := -1
	show := func(u progress.Update) {
		if u.SessionID != d.ID() {
			return
		}
		if step := int(u.Percentage / 10); step > lastStep || u.State != progress.StateActive {
			lastStep = step
			fmt.Fprintf(out, "%s%% time left: %s s\n",
				progress.FormatPercentage(u.Percentage), progress.FormatSeconds(u.TimeLeft))
		}
	}

	for {
		select {
		case <-ctx.Done():
			dm.Stop()
			<-d.Done()
			ctx = context.Background()

		case <-d.Done():
			// every update was published before Done closed
			for {
				select {
				case u := <-updates:
					show(u)
				default:
					return plainSummary(out, d)
				}
			}

		case u := <-updates:
			show(u)
		}
	}
}

func plainSummary(out io.Writer, d *downloads.Download) error {
	s := d.Session()
	snap := s.Snapshot()

	switch snap.State {
	case progress.StateCompleted:
		fmt.Fprintf(out, "completed in %.2f s: %s\n", snap.Elapsed, d.Path())
		if report, ok := s.Report(); ok {
			fmt.Fprint(out, summaryView(progress.Summarize(slices.Values(report.Deviations))))
		}
		return nil
	case progress.StateErrored:
		return s.Err()
	default:
		fmt.Fprintf(out, "%s after %.2f s\n", snap.State, snap.Elapsed)
		return nil
	}
}
