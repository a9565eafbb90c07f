package progress

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	StateIdle State = iota
	StateActive
	StateCompleted
	StateCancelled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateErrored; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateErrored
}

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrInvalidSize       = errors.New("total size must be positive")
)

// Update is pushed to the presentation layer after every progress event
// and state change.
type Update struct {
	SessionID     uuid.UUID `json:"session_id"`
	State         State     `json:"state"`
	Percentage    float64   `json:"percentage"`
	TimeLeft      *float64  `json:"predicted_time_left"`
	TimePassed    float64   `json:"time_passed"`
	BytesReceived int64     `json:"bytes_received"`
	TotalBytes    int64     `json:"total_bytes"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	Update
	ShowPlots bool    `json:"show_plots"`
	Elapsed   float64 `json:"elapsed"`
	Error     string  `json:"error,omitempty"`
}

type Option func(*Session)

// WithPlots enables recording of every observation, trading memory for the
// charts and the accuracy report.
func WithPlots(enabled bool) Option {
	return func(s *Session) { s.showPlots = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithUpdateFunc(fn func(Update)) Option {
	return func(s *Session) { s.onUpdate = fn }
}

func WithID(id uuid.UUID) Option {
	return func(s *Session) { s.id = id }
}

// Session tracks a single download from start to a terminal state.
//
// Mutations (Start, OnProgress, Complete, Cancel, Fail) are expected from a
// single goroutine, the one running the transport. The lock only exists so
// that readers on other goroutines observe consistent snapshots.
type Session struct {
	mu sync.RWMutex

	id        uuid.UUID
	state     State
	showPlots bool
	now       func() time.Time
	onUpdate  func(Update)

	start    time.Time
	total    int64
	received int64

	percentage float64
	timeLeft   *float64
	timePassed float64
	elapsed    time.Duration

	recorder Recorder
	report   *Report
	err      error
}

func NewSession(totalBytes int64, opts ...Option) (*Session, error) {
	if totalBytes <= 0 {
		return nil, ErrInvalidSize
	}

	s := &Session{
		id:    uuid.New(),
		total: totalBytes,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		defer s.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateActive
	s.start = s.now()
	u := s.update()
	s.mu.Unlock()

	s.notify(u)
	return nil
}

// Resize replaces the expected total once the real stream size is known.
// Metadata sizes may be estimates, so the transport's count of remaining
// bytes is only consistent with the size of the stream actually opened.
// It is accepted only while active and before any byte was received.
func (s *Session) Resize(totalBytes int64) error {
	if totalBytes <= 0 {
		return ErrInvalidSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive || s.received > 0 {
		return fmt.Errorf("%w: resize in %s after %d bytes", ErrInvalidTransition, s.state, s.received)
	}
	s.total = totalBytes
	return nil
}

// OnProgress is the transport callback, invoked after every received chunk.
// Events outside the active state are dropped: a cooperative stop may let a
// last chunk through after the session already ended.
func (s *Session) OnProgress(chunk, remaining int64) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}

	received := min(max(s.total-remaining, 0), s.total)
	percentage := float64(received) / float64(s.total) * 100
	timePassed := s.now().Sub(s.start).Seconds()

	var timeLeft *float64
	if left, err := Predict(percentage, timePassed); err == nil {
		timeLeft = &left
	}

	s.received = received
	s.percentage = percentage
	s.timePassed = timePassed
	s.timeLeft = timeLeft

	if s.showPlots {
		s.record(percentage, timePassed, timeLeft)
	}

	u := s.update()
	s.mu.Unlock()

	s.notify(u)
}

// record keeps the log strictly increasing in time and non-decreasing in
// percentage.
func (s *Session) record(percentage, timePassed float64, timeLeft *float64) {
	if last, ok := s.recorder.last(); ok {
		if timePassed <= last.TimePassed || percentage < last.Percentage {
			slog.Debug("dropping out of order sample",
				slog.String("id", s.id.String()),
				slog.Float64("time_passed", timePassed),
				slog.Float64("percentage", percentage),
			)
			return
		}
	}
	s.recorder.Record(percentage, timePassed, timeLeft)
}

// Complete marks the end of the stream. With plots enabled the observation
// log is handed to the analyzer.
func (s *Session) Complete() error {
	s.mu.Lock()
	if err := s.finish(StateCompleted); err != nil {
		s.mu.Unlock()
		return err
	}

	if s.showPlots {
		total := s.elapsed.Seconds()
		s.report = &Report{
			TotalTime:  total,
			Deviations: Collect(Analyze(s.recorder.observations, total)),
		}
	}
	u := s.update()
	s.mu.Unlock()

	s.notify(u)
	return nil
}

func (s *Session) Cancel() error {
	s.mu.Lock()
	if err := s.finish(StateCancelled); err != nil {
		s.mu.Unlock()
		return err
	}
	u := s.update()
	s.mu.Unlock()

	s.notify(u)
	return nil
}

func (s *Session) Fail(cause error) error {
	s.mu.Lock()
	if err := s.finish(StateErrored); err != nil {
		s.mu.Unlock()
		return err
	}
	s.err = cause
	u := s.update()
	s.mu.Unlock()

	s.notify(u)
	return nil
}

func (s *Session) finish(to State) error {
	if s.state != StateActive {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	s.elapsed = s.now().Sub(s.start)
	return nil
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the failure of an errored session.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Elapsed is the final duration of a finished session, or the time passed
// so far for an active one.
func (s *Session) Elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.state.Terminal():
		return s.elapsed
	case s.state == StateActive:
		return s.now().Sub(s.start)
	default:
		return 0
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Update:    s.update(),
		ShowPlots: s.showPlots,
	}
	if s.state.Terminal() {
		snap.Elapsed = s.elapsed.Seconds()
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func (s *Session) Observations() []Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recorder.Observations()
}

// Report returns the accuracy analysis, available once the session has
// completed with plots enabled.
func (s *Session) Report() (*Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report, s.report != nil
}

func (s *Session) update() Update {
	return Update{
		SessionID:     s.id,
		State:         s.state,
		Percentage:    s.percentage,
		TimeLeft:      s.timeLeft,
		TimePassed:    s.timePassed,
		BytesReceived: s.received,
		TotalBytes:    s.total,
	}
}

func (s *Session) notify(u Update) {
	if s.onUpdate != nil {
		s.onUpdate(u)
	}
}
