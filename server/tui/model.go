package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
	"github.com/marcopiovanello/ytdl-eta/server/internal/progress"
	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
)

type (
	// updateMsg carries a progress update published by the manager.
	updateMsg progress.Update

	startedMsg struct {
		download *downloads.Download
	}

	errMsg struct {
		err error
	}
)

// Stopper is the part of the manager the model needs besides starting.
type Stopper interface {
	Stop() (*downloads.Download, error)
}

type Model struct {
	start   tea.Cmd
	stopper Stopper

	video   *source.Video
	variant source.Variant

	bar  bar.Model
	help help.Model
	keys keyMap

	download *downloads.Download
	last     progress.Update
	summary  *progress.Summary
	elapsed  float64
	err      error

	stopping bool
	done     bool
}

func NewModel(video *source.Video, variant source.Variant, start tea.Cmd, stopper Stopper) Model {
	return Model{
		start:   start,
		stopper: stopper,
		video:   video,
		variant: variant,
		bar: bar.New(
			bar.WithDefaultGradient(),
			bar.WithWidth(50),
		),
		help: help.New(),
		keys: newKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.start
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-8, 80))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.active() {
				m.stop()
				return m, nil
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Stop):
			if m.active() {
				m.stop()
				return m, nil
			}
			if m.done || m.err != nil {
				return m, tea.Quit
			}
		}
		return m, nil

	case startedMsg:
		m.download = msg.download
		// the download may have ended before this message got here
		if m.last.State.Terminal() && m.last.SessionID == m.download.ID() {
			return m.finish(), tea.Quit
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, tea.Quit

	case updateMsg:
		u := progress.Update(msg)
		if m.download != nil && u.SessionID != m.download.ID() {
			return m, nil
		}
		m.last = u
		if u.State.Terminal() && m.download != nil {
			return m.finish(), tea.Quit
		}
		return m, nil
	}

	return m, nil
}

func (m Model) active() bool {
	return m.download != nil && !m.done && !m.last.State.Terminal()
}

func (m *Model) stop() {
	if m.stopping {
		return
	}
	m.stopping = true
	if _, err := m.stopper.Stop(); err != nil {
		m.err = err
	}
}

func (m Model) finish() Model {
	m.done = true
	if m.download == nil {
		return m
	}

	s := m.download.Session()
	m.elapsed = s.Elapsed().Seconds()
	if err := s.Err(); err != nil {
		m.err = err
	}
	if report, ok := s.Report(); ok {
		summary := progress.Summarize(slices.Values(report.Deviations))
		m.summary = &summary
	}
	return m
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.video.Title))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("%s · %s views · %s · %s (%s)",
		m.video.Author,
		progress.FormatViews(m.video.Views),
		progress.FormatLength(m.video.DurationSeconds),
		m.variant.Label(),
		humanize.Bytes(uint64(max(m.variant.SizeBytes, 0))),
	)))
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(m.last.Percentage / 100))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s%%  ", progress.FormatPercentage(m.last.Percentage)))
	b.WriteString(etaStyle.Render("time left: " + progress.FormatSeconds(m.last.TimeLeft) + " s"))
	b.WriteString("\n")

	switch {
	case m.err != nil && m.last.State != progress.StateCancelled:
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	case m.done && m.last.State == progress.StateCompleted:
		b.WriteString(doneStyle.Render(fmt.Sprintf("completed in %.2f s", m.elapsed)))
		b.WriteString("\n")
		if m.summary != nil {
			b.WriteString(summaryView(*m.summary))
		}
	case m.done:
		b.WriteString(infoStyle.Render(fmt.Sprintf("%s after %.2f s", m.last.State, m.elapsed)))
		b.WriteString("\n")
	case m.stopping:
		b.WriteString(infoStyle.Render("stopping..."))
		b.WriteString("\n")
	default:
		b.WriteString(m.help.View(m.keys))
		b.WriteString("\n")
	}

	return boxStyle.Render(b.String()) + "\n"
}

func summaryView(s progress.Summary) string {
	return fmt.Sprintf("prediction error over %d samples: mean %.2f s, mean abs %.2f s, max abs %.2f s\n",
		s.Samples, s.MeanError, s.MeanAbsoluteError, s.MaxAbsoluteError)
}
