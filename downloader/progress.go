package downloader

import (
	"math"
	"strconv"
	"strings"
)

// Aggregate maps batch position and current item fraction to an overall
// percentage in [0, 100]. total must be positive; 0 is returned otherwise.
func Aggregate(completed, total int, fraction float64) int {
	if total <= 0 {
		return 0
	}
	fraction = clampFraction(fraction)
	pct := math.Floor((float64(completed) + fraction) * 100 / float64(total))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return int(pct)
}

func clampFraction(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// parsePercent turns an engine percent string such as " 45.3%" into a
// fraction. ok is false for anything unparseable.
func parsePercent(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v / 100, true
}

// ProgressState is the per-job progress owned by one download job
type ProgressState struct {
	TotalItems          int
	CompletedItems      int
	CurrentItemFraction float64

	lastEmitted int
}

func newProgressState(total int) *ProgressState {
	return &ProgressState{TotalItems: total, lastEmitted: -1}
}

// apply folds one engine update into the state. It returns the new
// aggregate and true only when that value is strictly greater than the last
// one emitted for the job.
func (ps *ProgressState) apply(update ProgressUpdate) (int, bool) {
	switch update.Status {
	case StatusDownloading:
		fraction, ok := parsePercent(update.Percent)
		if !ok {
			return 0, false
		}
		ps.CurrentItemFraction = clampFraction(fraction)
	case StatusFinished:
		if ps.CompletedItems < ps.TotalItems {
			ps.CompletedItems++
		}
		ps.CurrentItemFraction = 0
	default:
		return 0, false
	}
	return ps.offer(Aggregate(ps.CompletedItems, ps.TotalItems, ps.CurrentItemFraction))
}

func (ps *ProgressState) offer(pct int) (int, bool) {
	if pct <= ps.lastEmitted {
		return 0, false
	}
	ps.lastEmitted = pct
	return pct, true
}

// LastEmitted returns the highest percentage emitted so far, or -1
func (ps *ProgressState) LastEmitted() int {
	return ps.lastEmitted
}

func (ps *ProgressState) snapshot() Progress {
	pct := ps.lastEmitted
	if pct < 0 {
		pct = 0
	}
	return Progress{Percent: pct, CompletedItems: ps.CompletedItems, TotalItems: ps.TotalItems}
}
