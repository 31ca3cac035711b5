package main

import (
	"flag"
	"os"

	"github.com/kisy/netmole/pkg/logger"
	"go.uber.org/fx"
)

func main() {
	var configFile string
	var listenAddr string
	var source string
	var units string
	var logLevel string

	flag.StringVar(&configFile, "config", defaultConfigFile, "Path to configuration file")
	flag.StringVar(&listenAddr, "listen", "", "HTTP stats/metrics listen address, e.g. 127.0.0.1:8080 (overrides config)")
	flag.StringVar(&source, "source", "", "Counter source: auto, gopsutil, netlink or conntrack (overrides config)")
	flag.StringVar(&units, "units", "", "Display units: MB, KB or auto (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	if err := logger.Setup("info", "console"); err != nil {
		panic(err)
	}
	log := logger.Logger("main")

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	// Load Config
	config, loaded, err := loadConfig(configFile, explicit)
	if err != nil {
		log.Fatalw("failed to load config", "err", err)
	}

	// Flag overrides config
	if listenAddr != "" {
		config.Listen = listenAddr
	}
	if source != "" {
		config.Source = source
	}
	if units != "" {
		config.Units = units
	}
	if logLevel != "" {
		config.Log.Level = logLevel
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		log.Fatalw("invalid config", "err", err)
	}

	if err := logger.Setup(config.Log.Level, config.Log.Format); err != nil {
		log.Fatalw("failed to configure logging", "err", err)
	}
	if loaded {
		log.Infow("loaded config", "path", configFile)
	}

	log.Infow("starting netmole", "source", config.Source, "units", config.Units)

	// Run blocks until SIGINT/SIGTERM, then stops every component in reverse order
	app := fx.New(appOptions(config))
	if err := app.Err(); err != nil {
		log.Errorw("failed to build application", "err", err)
		os.Exit(1)
	}
	app.Run()
}
