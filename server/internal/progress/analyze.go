package progress

import (
	"iter"
	"math"
)

// Deviation is the prediction error of one observation against the real
// duration of the download. A positive error means the prediction was too
// pessimistic.
type Deviation struct {
	TimePassed float64 `json:"time_passed" yaml:"time_passed"`
	Error      float64 `json:"error" yaml:"error"`
}

// Report is the retrospective accuracy analysis of a completed download.
type Report struct {
	TotalTime  float64     `json:"total_time" yaml:"total_time"`
	Deviations []Deviation `json:"deviations" yaml:"deviations"`
}

// Analyze replays the observations against the real total time.
// Observations without a prediction are skipped. The sequence is computed
// lazily and reads the slice it was given; it never modifies it.
func Analyze(observations []Observation, totalTime float64) iter.Seq[Deviation] {
	return func(yield func(Deviation) bool) {
		for _, o := range observations {
			left, ok := o.Predicted()
			if !ok {
				continue
			}
			d := Deviation{
				TimePassed: o.TimePassed,
				Error:      o.TimePassed + left - totalTime,
			}
			if !yield(d) {
				return
			}
		}
	}
}

// Collect drains a deviation sequence into a slice.
func Collect(seq iter.Seq[Deviation]) []Deviation {
	deviations := []Deviation{}
	for d := range seq {
		deviations = append(deviations, d)
	}
	return deviations
}

type Summary struct {
	Samples           int     `json:"samples" yaml:"samples"`
	MeanError         float64 `json:"mean_error" yaml:"mean_error"`
	MeanAbsoluteError float64 `json:"mean_absolute_error" yaml:"mean_absolute_error"`
	MaxAbsoluteError  float64 `json:"max_absolute_error" yaml:"max_absolute_error"`
}

func Summarize(seq iter.Seq[Deviation]) Summary {
	var (
		s        Summary
		sum, abs float64
	)
	for d := range seq {
		s.Samples++
		sum += d.Error
		abs += math.Abs(d.Error)
		s.MaxAbsoluteError = max(s.MaxAbsoluteError, math.Abs(d.Error))
	}
	if s.Samples > 0 {
		s.MeanError = sum / float64(s.Samples)
		s.MeanAbsoluteError = abs / float64(s.Samples)
	}
	return s
}
