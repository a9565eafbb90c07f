package progress

import "errors"

// ErrNoProgress is returned by Predict when nothing has been downloaded yet
// and the time per percent cannot be computed.
var ErrNoProgress = errors.New("cannot predict time left at 0%")

// Predict extrapolates the time left from a single sample, assuming the
// average rate observed so far holds for the rest of the download.
//
// A percentage of 0 (or less) would divide by zero: ErrNoProgress is
// returned instead of an infinite or NaN estimate.
func Predict(percentage, timePassed float64) (float64, error) {
	if percentage <= 0 {
		return 0, ErrNoProgress
	}
	if percentage >= 100 {
		return 0, nil
	}

	timePerPercent := timePassed / percentage
	return (100 - percentage) * timePerPercent, nil
}
