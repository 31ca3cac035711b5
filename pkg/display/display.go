// Package display renders throughput readings.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/kisy/netmole/model"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap/zapcore"
)

// Surface receives one call per tick that produced a reading. Ticks without
// a reading make no call, so the surface keeps showing the last value.
type Surface interface {
	Show(r model.ThroughputReading)
	// Unavailable is called once when sampling has failed for a sustained period.
	Unavailable(err error)
}

// Units accepted by FormatRate.
const (
	UnitMB   = "MB"
	UnitKB   = "KB"
	UnitAuto = "auto"
)

func ValidUnit(u string) bool {
	switch strings.ToUpper(u) {
	case "", UnitMB, UnitKB, strings.ToUpper(UnitAuto):
		return true
	}
	return false
}

// FormatRate renders bytes/sec with two decimals. MB and KB are binary multiples.
func FormatRate(bytesPerSec float64, unit string) string {
	const (
		kb = 1024.0
		mb = 1024.0 * 1024.0
		gb = 1024.0 * 1024.0 * 1024.0
	)
	switch strings.ToUpper(unit) {
	case UnitKB:
		return fmt.Sprintf("%.2f KB/s", bytesPerSec/kb)
	case strings.ToUpper(UnitAuto):
		switch {
		case bytesPerSec >= gb:
			return fmt.Sprintf("%.2f GB/s", bytesPerSec/gb)
		case bytesPerSec >= mb:
			return fmt.Sprintf("%.2f MB/s", bytesPerSec/mb)
		case bytesPerSec >= kb:
			return fmt.Sprintf("%.2f KB/s", bytesPerSec/kb)
		default:
			return fmt.Sprintf("%.0f B/s", bytesPerSec)
		}
	default:
		return fmt.Sprintf("%.2f MB/s", bytesPerSec/mb)
	}
}

// Terminal writes readings to a writer. On a TTY the line is rewritten in
// place; otherwise every reading gets its own line.
type Terminal struct {
	mu     sync.Mutex
	w      io.Writer
	unit   string
	inline bool
	live   string // line currently drawn in inline mode
}

func NewTerminal(w io.Writer, unit string) *Terminal {
	return &Terminal{w: w, unit: unit, inline: isTerminal(w)}
}

// Inline reports whether readings rewrite a single line.
func (t *Terminal) Inline() bool {
	return t.inline
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (t *Terminal) Show(r model.ThroughputReading) {
	t.write(fmt.Sprintf("↓ %s  ↑ %s", FormatRate(r.DownloadRate, t.unit), FormatRate(r.UploadRate, t.unit)))
}

func (t *Terminal) Unavailable(err error) {
	t.write(fmt.Sprintf("↓ --  ↑ --  (%v)", err))
}

func (t *Terminal) write(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inline {
		fmt.Fprintf(t.w, "\r\x1b[K%s", line)
		t.live = line
		return
	}
	fmt.Fprintln(t.w, line)
}

// LogSink returns a log destination writing to w that keeps the inline line
// intact: the line is cleared before each entry and redrawn after it.
func (t *Terminal) LogSink(w io.Writer) zapcore.WriteSyncer {
	return &logSink{t: t, w: w}
}

type logSink struct {
	t *Terminal
	w io.Writer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.t.live != "" {
		fmt.Fprint(s.t.w, "\r\x1b[K")
	}
	n, err := s.w.Write(p)
	if s.t.live != "" {
		fmt.Fprint(s.t.w, s.t.live)
	}
	return n, err
}

// Sync is a no-op; every Write goes straight to the underlying writer.
func (s *logSink) Sync() error {
	return nil
}

// Multi fans every call out to each surface in order.
type Multi []Surface

func (m Multi) Show(r model.ThroughputReading) {
	for _, s := range m {
		s.Show(r)
	}
}

func (m Multi) Unavailable(err error) {
	for _, s := range m {
		s.Unavailable(err)
	}
}
