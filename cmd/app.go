package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/kisy/netmole/pkg/display"
	"github.com/kisy/netmole/pkg/logger"
	"github.com/kisy/netmole/pkg/metrics"
	"github.com/kisy/netmole/pkg/monitor"
	"github.com/kisy/netmole/pkg/stats"
	"github.com/kisy/netmole/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// appOptions wires the host-facing pieces (clock, counters, terminal) around coreModule.
func appOptions(config Config) fx.Option {
	return fx.Options(
		fx.Supply(config),
		fx.Provide(
			clock.New,
			newSampler,
			newSurface,
		),
		coreModule,
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Base().Named("fx")}
		}),
	)
}

var coreModule = fx.Module("netmole",
	fx.Provide(
		stats.NewAggregator,
		newRegistry,
		newExporter,
		newWebServer,
	),
	fx.Invoke(registerAggregator, registerWebServer),
)

func newSampler(lc fx.Lifecycle, config Config, clk clock.Clock) (monitor.Sampler, error) {
	s, err := monitor.New(monitor.Config{Source: config.Source, Exclude: config.Exclude}, clk)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}

// newSurface builds the terminal display. When it rewrites a live line, logs
// are routed through it so entries do not split that line.
func newSurface(config Config) (display.Surface, error) {
	term := display.NewTerminal(os.Stdout, config.Units)
	if term.Inline() {
		if err := logger.SetupWithOutput(config.Log.Level, config.Log.Format, term.LogSink(os.Stderr)); err != nil {
			return nil, err
		}
	}
	return term, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newExporter(reg *prometheus.Registry, agg *stats.Aggregator) (*metrics.Exporter, error) {
	e := metrics.NewExporter(agg)
	if err := reg.Register(e); err != nil {
		return nil, err
	}
	return e, nil
}

func newWebServer(agg *stats.Aggregator, reg *prometheus.Registry) *web.Server {
	srv := web.NewServer(agg, reg)
	srv.RegisterHandlers()
	return srv
}

func registerAggregator(lc fx.Lifecycle, agg *stats.Aggregator, _ *metrics.Exporter) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return agg.Start()
		},
		OnStop: func(context.Context) error {
			agg.Stop()
			return nil
		},
	})
}

func registerWebServer(lc fx.Lifecycle, config Config, srv *web.Server) {
	if config.Listen == "" {
		return
	}
	log := logger.Logger("main")
	server := &http.Server{Addr: config.Listen, Handler: srv.Handler()}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", config.Listen)
			if err != nil {
				return err
			}
			log.Infow("web server listening", "addr", ln.Addr().String())
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("HTTP server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
