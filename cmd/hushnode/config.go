// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"
)

// Config is the file-backed node configuration. Flags given on the
// command line win over file values.
type Config struct {
	DataDir       string        `yaml:"dataDir"`
	APIAddr       string        `yaml:"apiAddr"`
	APICors       string        `yaml:"apiCors"`
	BlockInterval time.Duration `yaml:"blockInterval"`
	CacheSizeMB   int           `yaml:"cacheSizeMB"`
	MaxMessages   int           `yaml:"maxMessages"`
	AttachmentTTL time.Duration `yaml:"attachmentTTL"`
	EnableMetrics bool          `yaml:"enableMetrics"`
	EnableAPILogs bool          `yaml:"enableApiLogs"`
	Pprof         bool          `yaml:"pprof"`
}

// loadConfig reads the optional config file and overlays flag values.
func loadConfig(ctx *cli.Context) (*Config, error) {
	cfg := &Config{
		DataDir:     dataDirFlag.Value,
		APIAddr:     apiAddrFlag.Value,
		CacheSizeMB: cacheSizeFlag.Value,
		MaxMessages: maxMessagesFlag.Value,
	}
	if path := ctx.String(configFlag.Name); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(apiAddrFlag.Name) {
		cfg.APIAddr = ctx.String(apiAddrFlag.Name)
	}
	if ctx.IsSet(apiCorsFlag.Name) {
		cfg.APICors = ctx.String(apiCorsFlag.Name)
	}
	if ctx.IsSet(blockIntervalFlag.Name) {
		cfg.BlockInterval = ctx.Duration(blockIntervalFlag.Name)
	}
	if ctx.IsSet(cacheSizeFlag.Name) {
		cfg.CacheSizeMB = ctx.Int(cacheSizeFlag.Name)
	}
	if ctx.IsSet(maxMessagesFlag.Name) {
		cfg.MaxMessages = ctx.Int(maxMessagesFlag.Name)
	}
	if ctx.Bool(enableMetricsFlag.Name) {
		cfg.EnableMetrics = true
	}
	if ctx.Bool(enableAPILogsFlag.Name) {
		cfg.EnableAPILogs = true
	}
	if ctx.Bool(pprofFlag.Name) {
		cfg.Pprof = true
	}
	return cfg, nil
}
