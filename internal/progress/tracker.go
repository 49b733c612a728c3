// Package progress implements the coarse 20-step progress reporter shared
// by every long-running scan in this toolkit.
package progress

import (
	"errors"

	"go.uber.org/zap"
)

const (
	steps              = 20
	progressMultiplier = 100 / steps
)

// ErrEmptyTotal is returned by New when total is zero.
var ErrEmptyTotal = errors.New("progress: cannot track a total of zero items")

// LogFunc is invoked once per 5% bucket crossed, with the cumulative
// percentage (5, 10, ..., 100). The tracker never formats the log line
// itself — callers close over a *zap.Logger to do that.
type LogFunc func(percent uint64)

// Tracker divides total into 20 equal buckets and invokes log each time
// AdvanceBy crosses a new one.
type Tracker struct {
	total     uint64
	processed uint64
	factor    uint64
	log       LogFunc
	logger    *zap.Logger
}

// New constructs a Tracker for total items, reporting through log. total
// must be positive.
func New(total uint64, log LogFunc, logger *zap.Logger) (*Tracker, error) {
	if total == 0 {
		return nil, ErrEmptyTotal
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{total: total, factor: 1, log: log, logger: logger}, nil
}

// AdvanceBy records that step more items were processed, invoking log for
// every 5% bucket boundary crossed. Over-advancing past total is logged as
// a warning but never fails.
func (t *Tracker) AdvanceBy(step uint64) {
	t.processed += step
	for t.processed*steps >= t.total*t.factor {
		t.log(t.factor * progressMultiplier)
		t.factor++
	}
	if t.processed > t.total {
		t.logger.Warn("progress exceeded total amount to process",
			zap.Uint64("total", t.total),
			zap.Uint64("excess", t.processed-t.total),
		)
	}
}
