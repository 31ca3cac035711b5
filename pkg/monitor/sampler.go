package monitor

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/kisy/netmole/model"
	"github.com/kisy/netmole/pkg/logger"
)

var log = logger.Logger("monitor")

// ErrUnavailableCounters is returned when the host cannot report network statistics.
var ErrUnavailableCounters = errors.New("network counters unavailable")

// SampleTimeout bounds a single counter read for sources that accept a context.
const SampleTimeout = 500 * time.Millisecond

// Counter sources.
const (
	SourceAuto      = "auto"
	SourceGopsutil  = "gopsutil"
	SourceNetlink   = "netlink"
	SourceConntrack = "conntrack"
)

// Sampler reads the aggregate bytes received/sent across all interfaces.
// Sample never retries; a failed read is reported to the caller for that tick.
type Sampler interface {
	Sample() (model.CounterSample, error)
	Close() error
}

type Config struct {
	Source  string
	Exclude []string // Interface names left out of the totals
}

// ValidSource reports whether name is a known counter source.
func ValidSource(name string) bool {
	switch strings.ToLower(name) {
	case "", SourceAuto, SourceGopsutil, SourceNetlink, SourceConntrack:
		return true
	}
	return false
}

// New builds the sampler for cfg.Source. Timestamps come from clk.
func New(cfg Config, clk clock.Clock) (Sampler, error) {
	if clk == nil {
		clk = clock.New()
	}
	source := strings.ToLower(cfg.Source)
	if source == "" || source == SourceAuto {
		source = SourceGopsutil
		if runtime.GOOS == "linux" {
			source = SourceNetlink
		}
	}

	log.Infow("using counter source", "source", source, "exclude", cfg.Exclude)

	switch source {
	case SourceGopsutil:
		return NewGopsutilSampler(clk, cfg.Exclude), nil
	case SourceNetlink:
		return newNetlinkSampler(clk, cfg.Exclude)
	case SourceConntrack:
		return newConntrackSampler(clk)
	default:
		return nil, fmt.Errorf("unknown counter source %q", cfg.Source)
	}
}

func excludeSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
