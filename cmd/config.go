package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kisy/netmole/pkg/display"
	"github.com/kisy/netmole/pkg/logger"
	"github.com/kisy/netmole/pkg/monitor"
)

const defaultConfigFile = "netmole.toml"

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Source  string    `toml:"source"`
	Exclude []string  `toml:"exclude"`
	Units   string    `toml:"units"`
	Listen  string    `toml:"listen"`
	Log     LogConfig `toml:"log"`
}

// loadConfig reads path. A missing file is only an error when the user named it explicitly.
func loadConfig(path string, explicit bool) (Config, bool, error) {
	var config Config
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return config, false, nil
		}
		return config, false, fmt.Errorf("config file not found: %s", path)
	}

	md, err := toml.DecodeFile(path, &config)
	if err != nil {
		return config, false, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return config, false, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return config, true, nil
}

func (c *Config) applyDefaults() {
	if c.Source == "" {
		c.Source = monitor.SourceAuto
	}
	if c.Units == "" {
		c.Units = display.UnitMB
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func (c *Config) Validate() error {
	if !monitor.ValidSource(c.Source) {
		return fmt.Errorf("unknown source %q (want auto, gopsutil, netlink or conntrack)", c.Source)
	}
	if !display.ValidUnit(c.Units) {
		return fmt.Errorf("unknown units %q (want MB, KB or auto)", c.Units)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
