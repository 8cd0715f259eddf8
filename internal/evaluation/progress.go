package evaluation

import (
	"math"
	"sync"
)

const (
	progressStarted = 1
	progressFloor   = 5
	progressCeiling = 95
	progressDone    = 100
)

// unitProgress maps completed units onto the 5..95 band.
func unitProgress(completed, total int) int {
	if total <= 0 {
		return progressCeiling
	}
	p := int(math.Round(float64(completed)/float64(total)*90)) + 5
	return min(progressCeiling, max(progressFloor, p))
}

// progressTracker counts finished units and reports only increases.
type progressTracker struct {
	mu        sync.Mutex
	total     int
	completed int
	high      int
	publish   func(progress int)
}

func newProgressTracker(total, start int, publish func(int)) *progressTracker {
	return &progressTracker{total: total, high: start, publish: publish}
}

// unitDone records a finished unit, skipped or not. publish runs under the
// lock so observers never see a lower value after a higher one.
func (t *progressTracker) unitDone() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed++
	p := unitProgress(t.completed, t.total)
	if p <= t.high {
		return
	}
	t.high = p
	t.publish(p)
}
