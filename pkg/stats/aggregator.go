package stats

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/kisy/netmole/model"
	"github.com/kisy/netmole/pkg/display"
	"github.com/kisy/netmole/pkg/logger"
	"github.com/kisy/netmole/pkg/monitor"
	"github.com/kisy/netmole/pkg/schedule"
)

var log = logger.Logger("stats")

const (
	// TickInterval is the fixed sampling period.
	TickInterval = time.Second
	// FailureThreshold is the number of consecutive failed samples after which
	// the surface is told counters are unavailable.
	FailureThreshold = 5
)

// Aggregator drives the sample, estimate, display cycle and keeps session
// totals for the web surface and the metrics exporter.
type Aggregator struct {
	sampler monitor.Sampler
	surface display.Surface
	clk     clock.Clock
	sched   *schedule.Scheduler

	// Only touched from Start and the tick goroutine
	est      *Estimator
	failures uint64
	reported bool

	mu        sync.RWMutex
	global    model.GlobalStats
	startTime time.Time
}

func NewAggregator(sampler monitor.Sampler, surface display.Surface, clk clock.Clock) *Aggregator {
	if clk == nil {
		clk = clock.New()
	}
	return &Aggregator{
		sampler:   sampler,
		surface:   surface,
		clk:       clk,
		sched:     schedule.New(clk),
		est:       NewEstimator(),
		startTime: clk.Now(),
	}
}

// Start takes the seeding sample and begins ticking every TickInterval.
func (a *Aggregator) Start() error {
	a.mu.Lock()
	a.startTime = a.clk.Now()
	a.mu.Unlock()

	sample, err := a.sampler.Sample()
	if err != nil {
		log.Warnw("initial counter read failed, throughput stays empty until counters become readable", "err", err)
		a.recordFailure(err)
	} else {
		a.est.Update(sample)
		a.recordSampled(sample.Timestamp)
	}

	log.Infow("starting aggregator", "interval", TickInterval)
	return a.sched.Start(TickInterval, a.tick)
}

func (a *Aggregator) Stop() {
	a.sched.Stop()
	log.Infow("aggregator stopped")
}

// tick runs one cycle. Errors skip the tick and leave the displayed value as is.
// Only Start and the scheduler goroutine call it; est, failures and reported are unguarded.
func (a *Aggregator) tick() {
	sample, err := a.sampler.Sample()
	if err != nil {
		a.recordFailure(err)
		return
	}
	a.recordSampled(sample.Timestamp)

	prev, hadPrev := a.est.Previous()
	r, ok, err := a.est.Update(sample)
	if err != nil {
		log.Debugw("tick skipped", "err", err)
		return
	}
	if !ok {
		return
	}

	dl, ul := uint64(0), uint64(0)
	if hadPrev {
		dl = delta(sample.BytesReceived, prev.BytesReceived)
		ul = delta(sample.BytesSent, prev.BytesSent)
	}

	a.mu.Lock()
	a.global.TotalDownload += dl
	a.global.TotalUpload += ul
	a.global.DownloadSpeed = r.DownloadRate
	a.global.UploadSpeed = r.UploadRate
	a.global.LastUpdate = r.Timestamp
	a.mu.Unlock()

	if a.surface != nil {
		a.surface.Show(r)
	}
}

func (a *Aggregator) recordFailure(err error) {
	a.failures++

	a.mu.Lock()
	a.global.Ticks++
	a.global.ConsecutiveFailures = a.failures
	a.global.LastError = err.Error()
	if a.failures >= FailureThreshold {
		a.global.Available = false
	}
	a.mu.Unlock()

	if a.failures < FailureThreshold || a.reported {
		log.Debugw("counter read failed", "err", err, "consecutive", a.failures)
		return
	}
	a.reported = true
	if errors.Is(err, monitor.ErrUnavailableCounters) {
		log.Warnw("network counters unavailable", "err", err, "consecutive", a.failures)
	} else {
		log.Warnw("counter reads keep failing", "err", err, "consecutive", a.failures)
	}
	if a.surface != nil {
		a.surface.Unavailable(err)
	}
}

func (a *Aggregator) recordSampled(at time.Time) {
	if a.reported {
		log.Infow("network counters readable again", "after_failures", a.failures)
	}
	a.failures = 0
	a.reported = false

	a.mu.Lock()
	a.global.Ticks++
	a.global.ConsecutiveFailures = 0
	a.global.LastError = ""
	a.global.Available = true
	if a.global.LastUpdate.IsZero() {
		a.global.LastUpdate = at
	}
	a.mu.Unlock()
}

// Public Methods

func (a *Aggregator) GetGlobalStats() model.GlobalStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.global
}

func (a *Aggregator) GetStartTime() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.startTime
}

// Reset zeroes the session totals. Current rates and availability are kept.
func (a *Aggregator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.global.TotalDownload = 0
	a.global.TotalUpload = 0
	a.startTime = a.clk.Now()
	return nil
}
