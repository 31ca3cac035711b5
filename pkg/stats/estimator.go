package stats

import (
	"errors"
	"fmt"
	"time"

	"github.com/kisy/netmole/model"
)

// ErrNonMonotonicTime is returned when a sample is not newer than the previous one.
var ErrNonMonotonicTime = errors.New("sample timestamp is not after the previous sample")

// MinInterval is the smallest elapsed time a rate is computed over.
const MinInterval = time.Millisecond

// Estimator turns consecutive counter samples into throughput readings.
// It keeps only the previous sample; it is not safe for concurrent use.
type Estimator struct {
	prev    model.CounterSample
	hasPrev bool
	last    model.ThroughputReading
}

func NewEstimator() *Estimator {
	return &Estimator{}
}

// Update computes the rate between the previous sample and cur.
//
// ok is false when no new reading exists: on the first call, which only seeds
// the estimator, and when cur is less than MinInterval after the previous
// sample, in which case the last reading is returned unchanged. A timestamp
// that does not advance yields ErrNonMonotonicTime. The previous sample is
// replaced only when ok is true or on the seeding call.
func (e *Estimator) Update(cur model.CounterSample) (r model.ThroughputReading, ok bool, err error) {
	if !e.hasPrev {
		e.prev = cur
		e.hasPrev = true
		return model.ThroughputReading{}, false, nil
	}

	elapsed := cur.Timestamp.Sub(e.prev.Timestamp)
	if elapsed <= 0 {
		return model.ThroughputReading{}, false, fmt.Errorf("%w: elapsed %v", ErrNonMonotonicTime, elapsed)
	}
	if elapsed < MinInterval {
		return e.last, false, nil
	}

	seconds := elapsed.Seconds()
	r = model.ThroughputReading{
		DownloadRate: rate(cur.BytesReceived, e.prev.BytesReceived, seconds),
		UploadRate:   rate(cur.BytesSent, e.prev.BytesSent, seconds),
		Elapsed:      elapsed,
		Timestamp:    cur.Timestamp,
	}
	e.prev = cur
	e.last = r
	return r, true, nil
}

// Previous returns the baseline sample and whether one exists.
func (e *Estimator) Previous() (model.CounterSample, bool) {
	return e.prev, e.hasPrev
}

// Reset drops the baseline; the next Update seeds again.
func (e *Estimator) Reset() {
	*e = Estimator{}
}

// rate treats a decreasing counter as a reset/wrap: the true modulus is
// platform dependent, so that direction reads 0 for this interval.
func rate(cur, prev uint64, seconds float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / seconds
}

// delta is the non-negative counter growth between two samples.
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}
