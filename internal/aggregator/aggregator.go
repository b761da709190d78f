// Package aggregator derives uptime figures from a target's tick history.
package aggregator

import (
	"math"
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/models"
)

const (
	DefaultWindowCount = 10
	DefaultWindowWidth = 3 * time.Minute
	DefaultLookback    = 30 * time.Minute
)

// Window is a fixed width time bucket covering (Start, End].
type Window struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	SuccessCount int       `json:"successCount"`
	TotalCount   int       `json:"totalCount"`
}

// Ratio is the percentage of good ticks in the window. An empty window reports 100.
func (w Window) Ratio() float64 {
	if w.TotalCount == 0 {
		return 100
	}
	return 100 * float64(w.SuccessCount) / float64(w.TotalCount)
}

// UptimeRatio is the percentage of good ticks. No ticks means 100.
func UptimeRatio(ticks []models.Tick) float64 {
	if len(ticks) == 0 {
		return 100
	}
	good := 0
	for _, t := range ticks {
		if t.Status == constants.StatusGood {
			good++
		}
	}
	return 100 * float64(good) / float64(len(ticks))
}

type windowOptions struct {
	count    int
	width    time.Duration
	lookback time.Duration
}

// Option adjusts WindowedActivity.
type Option func(*windowOptions)

func WithWindowCount(n int) Option {
	return func(o *windowOptions) { o.count = n }
}

func WithWindowWidth(d time.Duration) Option {
	return func(o *windowOptions) { o.width = d }
}

func WithLookback(d time.Duration) Option {
	return func(o *windowOptions) { o.lookback = d }
}

// WindowedActivity buckets ticks into contiguous windows ending at now,
// returned oldest first. Ticks outside (now-lookback, now] are ignored.
// A tick on a boundary belongs to the window that ends there.
func WindowedActivity(ticks []models.Tick, now time.Time, opts ...Option) []Window {
	o := windowOptions{
		count:    DefaultWindowCount,
		width:    DefaultWindowWidth,
		lookback: DefaultLookback,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.count <= 0 {
		return nil
	}
	if o.width <= 0 {
		o.width = DefaultWindowWidth
	}

	windows := make([]Window, o.count)
	for i := 0; i < o.count; i++ {
		end := now.Add(-time.Duration(i) * o.width)
		windows[i] = Window{Start: end.Add(-o.width), End: end}
	}

	horizon := now.Add(-o.lookback)
	for _, t := range ticks {
		ts := t.CreatedAt
		if ts.After(now) || !ts.After(horizon) {
			continue
		}
		// window i, counted from the newest, covers ages [i*width, (i+1)*width)
		i := int(now.Sub(ts) / o.width)
		if i >= o.count {
			continue
		}
		windows[i].TotalCount++
		if t.Status == constants.StatusGood {
			windows[i].SuccessCount++
		}
	}

	for l, r := 0, len(windows)-1; l < r; l, r = l+1, r-1 {
		windows[l], windows[r] = windows[r], windows[l]
	}
	return windows
}

// Summary is the read model for a target's recent health.
type Summary struct {
	UptimePercent  float64      `json:"uptimePercentage"`
	TotalTicks     int          `json:"totalTicks"`
	AverageLatency float64      `json:"averageLatency"`
	LatestTick     *models.Tick `json:"latestTick,omitempty"`
	Windows        []Window     `json:"windows"`
}

// Summarize builds a Summary from ticks ordered newest first.
func Summarize(ticks []models.Tick, now time.Time) Summary {
	s := Summary{
		UptimePercent: Round2(UptimeRatio(ticks)),
		TotalTicks:    len(ticks),
		Windows:       WindowedActivity(ticks, now),
	}
	if len(ticks) > 0 {
		latest := ticks[0]
		for _, t := range ticks[1:] {
			if latest.Before(t) {
				latest = t
			}
		}
		s.LatestTick = &latest
	}

	var sum float64
	good := 0
	for _, t := range ticks {
		if t.Status == constants.StatusGood {
			sum += t.Latency
			good++
		}
	}
	if good > 0 {
		s.AverageLatency = Round2(sum / float64(good) * 1000) // milliseconds
	}
	return s
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
