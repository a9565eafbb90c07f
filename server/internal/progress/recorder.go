package progress

import "slices"

// Observation is a single progress sample. TimeLeft is nil when no
// prediction could be made for the sample.
type Observation struct {
	TimePassed float64  `json:"time_passed" yaml:"time_passed"`
	Percentage float64  `json:"percentage" yaml:"percentage"`
	TimeLeft   *float64 `json:"predicted_time_left" yaml:"predicted_time_left"`
}

// Predicted returns the predicted time left and whether it is known.
func (o Observation) Predicted() (float64, bool) {
	if o.TimeLeft == nil {
		return 0, false
	}
	return *o.TimeLeft, true
}

// Recorder is an append-only log of observations.
// It is owned by a single Session and never shrinks.
type Recorder struct {
	observations []Observation
}

func (r *Recorder) Record(percentage, timePassed float64, timeLeft *float64) {
	r.observations = append(r.observations, Observation{
		TimePassed: timePassed,
		Percentage: percentage,
		TimeLeft:   timeLeft,
	})
}

func (r *Recorder) Len() int { return len(r.observations) }

// Observations returns a copy of the recorded log.
func (r *Recorder) Observations() []Observation {
	return slices.Clone(r.observations)
}

func (r *Recorder) last() (Observation, bool) {
	if len(r.observations) == 0 {
		return Observation{}, false
	}
	return r.observations[len(r.observations)-1], true
}
