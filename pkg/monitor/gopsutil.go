package monitor

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/kisy/netmole/model"
	psnet "github.com/shirou/gopsutil/v4/net"
)

// ioCountersFunc matches psnet.IOCountersWithContext.
type ioCountersFunc func(ctx context.Context, pernic bool) ([]psnet.IOCountersStat, error)

// GopsutilSampler reads counters through gopsutil; it works on every platform
// gopsutil supports.
type GopsutilSampler struct {
	clk      clock.Clock
	exclude  map[string]struct{}
	counters ioCountersFunc
}

func NewGopsutilSampler(clk clock.Clock, exclude []string) *GopsutilSampler {
	return &GopsutilSampler{
		clk:      clk,
		exclude:  excludeSet(exclude),
		counters: psnet.IOCountersWithContext,
	}
}

func (s *GopsutilSampler) Sample() (model.CounterSample, error) {
	ctx, cancel := context.WithTimeout(context.Background(), SampleTimeout)
	defer cancel()

	// Without exclusions gopsutil already returns one combined "all" entry.
	pernic := len(s.exclude) > 0
	stats, err := s.counters(ctx, pernic)
	if err != nil {
		return model.CounterSample{}, fmt.Errorf("%w: %v", ErrUnavailableCounters, err)
	}

	var sample model.CounterSample
	found := false
	for _, st := range stats {
		if _, skip := s.exclude[st.Name]; skip {
			continue
		}
		sample.BytesReceived += st.BytesRecv
		sample.BytesSent += st.BytesSent
		found = true
	}
	if !found {
		return model.CounterSample{}, fmt.Errorf("%w: no interface counters reported", ErrUnavailableCounters)
	}

	sample.Timestamp = s.clk.Now()
	return sample, nil
}

func (s *GopsutilSampler) Close() error {
	return nil
}
