//go:build !linux

package monitor

import (
	"fmt"
	"runtime"

	"github.com/benbjohnson/clock"
)

func newNetlinkSampler(clock.Clock, []string) (Sampler, error) {
	return nil, fmt.Errorf("%w: source %q is not supported on %s", ErrUnavailableCounters, SourceNetlink, runtime.GOOS)
}

func newConntrackSampler(clock.Clock) (Sampler, error) {
	return nil, fmt.Errorf("%w: source %q is not supported on %s", ErrUnavailableCounters, SourceConntrack, runtime.GOOS)
}
