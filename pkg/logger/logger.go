// Package logger hands out named zap loggers per subsystem.
//
//	var log = logger.Logger("stats")
//
//	log.Infow("aggregator started", "interval", interval)
//
// Loggers created before Setup keep working: they share one atomic level and a
// core that is swapped in place when Setup is called.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	base  = zap.NewNop()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	subs  = map[string]*zap.SugaredLogger{}
	swaps = map[string]*swapCore{}
)

// Setup configures the process-wide level and encoding ("console" or "json").
// Output goes to stderr.
func Setup(lvl, enc string) error {
	return SetupWithOutput(lvl, enc, nil)
}

// SetupWithOutput is Setup with entries written to out instead of stderr.
func SetupWithOutput(lvl, enc string, out zapcore.WriteSyncer) error {
	l, err := ParseLevel(lvl)
	if err != nil {
		return err
	}

	var cfg zap.Config
	switch strings.ToLower(enc) {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return fmt.Errorf("unknown log format %q", enc)
	}
	level.SetLevel(l)
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}

	var opts []zap.Option
	if out != nil {
		encoder := zapcore.NewConsoleEncoder(cfg.EncoderConfig)
		if cfg.Encoding == "json" {
			encoder = zapcore.NewJSONEncoder(cfg.EncoderConfig)
		}
		opts = append(opts, zap.WrapCore(func(zapcore.Core) zapcore.Core {
			return zapcore.NewCore(encoder, out, level)
		}))
	}

	built, err := cfg.Build(opts...)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	useLogger(built)
	return nil
}

func useLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	for _, sc := range swaps {
		sc.set(l.Core())
	}
}

// Logger returns the logger for a subsystem. Repeated calls return the same instance.
func Logger(subsystem string) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := subs[subsystem]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := subs[subsystem]; ok {
		return l
	}
	sc := &swapCore{}
	sc.set(base.Core())
	l := zap.New(sc).Named(subsystem).Sugar()
	subs[subsystem] = l
	swaps[subsystem] = sc
	return l
}

// Base returns the unnamed root logger, e.g. for fxevent.ZapLogger.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// SetLevel changes the level of every logger at runtime.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return l, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// swapCore forwards to a core that Setup may replace.
type swapCore struct {
	mu   sync.RWMutex
	core zapcore.Core
}

func (s *swapCore) set(c zapcore.Core) {
	s.mu.Lock()
	s.core = c
	s.mu.Unlock()
}

func (s *swapCore) get() zapcore.Core {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.core
}

func (s *swapCore) Enabled(l zapcore.Level) bool { return s.get().Enabled(l) }

func (s *swapCore) With(fields []zapcore.Field) zapcore.Core { return s.get().With(fields) }

func (s *swapCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return s.get().Check(e, ce)
}

func (s *swapCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	return s.get().Write(e, fields)
}

func (s *swapCore) Sync() error { return s.get().Sync() }
