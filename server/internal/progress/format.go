package progress

import (
	"fmt"
	"math"
	"strconv"
)

func FormatPercentage(p float64) string {
	return fmt.Sprintf("%.2f", p)
}

// FormatSeconds renders a predicted time left, or "unknown" when there is
// no prediction yet.
func FormatSeconds(s *float64) string {
	if s == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.2f", *s)
}

// FormatViews shortens a view count: above a million it becomes "x.xxm",
// above a thousand "x.xxk".
func FormatViews(views int) string {
	switch {
	case views > 1_000_000:
		return fmt.Sprintf("%.2fm", float64(views)/1_000_000)
	case views > 1_000:
		return fmt.Sprintf("%.2fk", float64(views)/1_000)
	default:
		return strconv.Itoa(views)
	}
}

// FormatLength renders a duration in seconds as minutes.
func FormatLength(seconds int) string {
	minutes := math.Round(float64(seconds)/60*100) / 100
	return strconv.FormatFloat(minutes, 'f', -1, 64) + " min"
}
