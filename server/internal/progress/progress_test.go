package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func ptr(f float64) *float64 { return &f }

func TestPredict(t *testing.T) {
	left, err := Predict(50, 10)
	require.NoError(t, err)
	assert.InDelta(t, 10, left, 1e-9)

	for _, tp := range []float64{0.5, 10, 3600} {
		left, err := Predict(100, tp)
		require.NoError(t, err)
		assert.Zero(t, left)
	}

	left, err = Predict(25, 1)
	require.NoError(t, err)
	assert.InDelta(t, 3, left, 1e-9)
}

func TestPredictZeroPercent(t *testing.T) {
	_, err := Predict(0, 5)
	assert.ErrorIs(t, err, ErrNoProgress)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Record(10, 1, nil)
	r.Record(20, 2, ptr(8))

	obs := r.Observations()
	require.Len(t, obs, 2)
	assert.Equal(t, 2, r.Len())

	_, ok := obs[0].Predicted()
	assert.False(t, ok)
	left, ok := obs[1].Predicted()
	assert.True(t, ok)
	assert.Equal(t, 8.0, left)

	// callers get a copy
	obs[0].Percentage = 99
	assert.Equal(t, 10.0, r.Observations()[0].Percentage)
}

func TestAnalyze(t *testing.T) {
	obs := []Observation{{TimePassed: 5, Percentage: 50, TimeLeft: ptr(5)}}

	deviations := Collect(Analyze(obs, 12))
	require.Len(t, deviations, 1)
	assert.Equal(t, 5.0, deviations[0].TimePassed)
	assert.InDelta(t, -2, deviations[0].Error, 1e-9)
}

func TestAnalyzeSkipsUnknownPredictions(t *testing.T) {
	obs := []Observation{
		{TimePassed: 1, Percentage: 0},
		{TimePassed: 2, Percentage: 50, TimeLeft: ptr(2)},
	}

	deviations := Collect(Analyze(obs, 4))
	require.Len(t, deviations, 1)
	assert.Equal(t, 2.0, deviations[0].TimePassed)
	assert.Zero(t, deviations[0].Error)
}

func TestAnalyzeStopsEarly(t *testing.T) {
	obs := []Observation{
		{TimePassed: 1, Percentage: 25, TimeLeft: ptr(3)},
		{TimePassed: 2, Percentage: 50, TimeLeft: ptr(2)},
	}

	n := 0
	for range Analyze(obs, 4) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestSummarize(t *testing.T) {
	obs := []Observation{
		{TimePassed: 1, Percentage: 25, TimeLeft: ptr(5)}, // +2
		{TimePassed: 2, Percentage: 50, TimeLeft: ptr(0)}, // -2
	}

	s := Summarize(Analyze(obs, 4))
	assert.Equal(t, 2, s.Samples)
	assert.InDelta(t, 0, s.MeanError, 1e-9)
	assert.InDelta(t, 2, s.MeanAbsoluteError, 1e-9)
	assert.InDelta(t, 2, s.MaxAbsoluteError, 1e-9)

	assert.Equal(t, Summary{}, Summarize(Analyze(nil, 1)))
}

func TestFormatViews(t *testing.T) {
	tests := []struct {
		views int
		want  string
	}{
		{500, "500"},
		{1_000, "1000"},
		{1_500, "1.50k"},
		{1_000_000, "1000.00k"},
		{2_500_000, "2.50m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatViews(tt.views), "views=%d", tt.views)
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "33.33", FormatPercentage(100.0/3))
	assert.Equal(t, "unknown", FormatSeconds(nil))
	assert.Equal(t, "2.00", FormatSeconds(ptr(2)))
	assert.Equal(t, "3.52 min", FormatLength(211))
}

const mb = 1024 * 1024

func TestSessionEndToEnd(t *testing.T) {
	clock := newFakeClock()

	var updates []Update
	s, err := NewSession(100*mb,
		WithPlots(true),
		WithClock(clock.Now),
		WithUpdateFunc(func(u Update) { updates = append(updates, u) }),
	)
	require.NoError(t, err)
	require.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Start())

	remaining := int64(100 * mb)
	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		remaining -= 25 * mb
		s.OnProgress(25*mb, remaining)

		if i == 1 {
			snap := s.Snapshot()
			assert.InDelta(t, 50, snap.Percentage, 1e-9)
			require.NotNil(t, snap.TimeLeft)
			assert.InDelta(t, 2, *snap.TimeLeft, 1e-9)
		}
	}

	snap := s.Snapshot()
	assert.InDelta(t, 100, snap.Percentage, 1e-9)
	require.NotNil(t, snap.TimeLeft)
	assert.Zero(t, *snap.TimeLeft)

	require.NoError(t, s.Complete())
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, 4*time.Second, s.Elapsed())

	obs := s.Observations()
	require.Len(t, obs, 4)
	for i, o := range obs {
		assert.InDelta(t, float64(25*(i+1)), o.Percentage, 1e-9)
		assert.InDelta(t, float64(i+1), o.TimePassed, 1e-9)
	}

	report, ok := s.Report()
	require.True(t, ok)
	assert.Equal(t, 4.0, report.TotalTime)
	require.Len(t, report.Deviations, 4)
	last := report.Deviations[len(report.Deviations)-1]
	assert.Equal(t, 4.0, last.TimePassed)
	assert.Zero(t, last.Error)

	// start, four chunks, completion
	require.Len(t, updates, 6)
	assert.Equal(t, StateActive, updates[0].State)
	assert.Equal(t, StateCompleted, updates[5].State)
}

func TestSessionMonotonicLog(t *testing.T) {
	clock := newFakeClock()
	s, err := NewSession(1000, WithPlots(true), WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	clock.Advance(time.Second)
	s.OnProgress(100, 900)
	// same instant, not recorded
	s.OnProgress(100, 800)
	clock.Advance(time.Second)
	s.OnProgress(100, 700)
	clock.Advance(time.Second)
	s.OnProgress(0, 700)

	obs := s.Observations()
	require.Len(t, obs, 3)
	for i := 1; i < len(obs); i++ {
		assert.Greater(t, obs[i].TimePassed, obs[i-1].TimePassed)
		assert.GreaterOrEqual(t, obs[i].Percentage, obs[i-1].Percentage)
	}
}

func TestSessionZeroPercentSample(t *testing.T) {
	clock := newFakeClock()
	s, err := NewSession(1000, WithPlots(true), WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	clock.Advance(time.Second)
	s.OnProgress(0, 1000)

	snap := s.Snapshot()
	assert.Zero(t, snap.Percentage)
	assert.Nil(t, snap.TimeLeft)

	obs := s.Observations()
	require.Len(t, obs, 1)
	assert.Nil(t, obs[0].TimeLeft)
}

func TestSessionWithoutPlots(t *testing.T) {
	clock := newFakeClock()
	s, err := NewSession(1000, WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	clock.Advance(time.Second)
	s.OnProgress(500, 500)
	assert.InDelta(t, 50, s.Snapshot().Percentage, 1e-9)
	assert.Empty(t, s.Observations())

	require.NoError(t, s.Complete())
	_, ok := s.Report()
	assert.False(t, ok)
}

func TestSessionCancel(t *testing.T) {
	clock := newFakeClock()
	s, err := NewSession(4, WithPlots(true), WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	clock.Advance(time.Second)
	s.OnProgress(1, 3)
	clock.Advance(time.Second)
	s.OnProgress(1, 2)

	require.NoError(t, s.Cancel())
	assert.Equal(t, StateCancelled, s.State())

	// a late chunk after the stop request is ignored
	clock.Advance(time.Second)
	s.OnProgress(1, 1)
	assert.InDelta(t, 50, s.Snapshot().Percentage, 1e-9)
	assert.Len(t, s.Observations(), 2)

	_, ok := s.Report()
	assert.False(t, ok)
	assert.ErrorIs(t, s.Complete(), ErrInvalidTransition)
	assert.ErrorIs(t, s.Start(), ErrInvalidTransition)
}

func TestSessionFail(t *testing.T) {
	s, err := NewSession(10)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	cause := assert.AnError
	require.NoError(t, s.Fail(cause))
	assert.Equal(t, StateErrored, s.State())
	assert.ErrorIs(t, s.Err(), cause)
	assert.Equal(t, cause.Error(), s.Snapshot().Error)

	assert.ErrorIs(t, s.Cancel(), ErrInvalidTransition)
}

func TestSessionInvalid(t *testing.T) {
	_, err := NewSession(0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	s, err := NewSession(10)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Complete(), ErrInvalidTransition)
	assert.ErrorIs(t, s.Cancel(), ErrInvalidTransition)

	s.OnProgress(5, 5)
	assert.Zero(t, s.Snapshot().Percentage)
}

func TestSessionResize(t *testing.T) {
	clock := newFakeClock()
	s, err := NewSession(100, WithClock(clock.Now))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Resize(200), ErrInvalidTransition)
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Resize(0), ErrInvalidSize)
	require.NoError(t, s.Resize(200))

	clock.Advance(time.Second)
	s.OnProgress(50, 150)
	snap := s.Snapshot()
	assert.Equal(t, 25.0, snap.Percentage)
	assert.Equal(t, int64(200), snap.TotalBytes)

	assert.ErrorIs(t, s.Resize(400), ErrInvalidTransition)
}

func TestStateText(t *testing.T) {
	b, err := StateCancelled.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "cancelled", string(b))
	assert.True(t, StateErrored.Terminal())
	assert.False(t, StateActive.Terminal())
}

func TestStateUnmarshalText(t *testing.T) {
	var s State
	require.NoError(t, s.UnmarshalText([]byte("completed")))
	assert.Equal(t, StateCompleted, s)
	assert.Error(t, s.UnmarshalText([]byte("paused")))
}
