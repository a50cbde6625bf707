// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	isatty "github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/Hushnetwork-social/hush-server-node-sub000/admin"
	"github.com/Hushnetwork-social/hush-server-node-sub000/api"
	"github.com/Hushnetwork-social/hush-server-node-sub000/attach"
	"github.com/Hushnetwork-social/hush-server-node-sub000/co"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedcache"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feeddb"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedstore"
	"github.com/Hushnetwork-social/hush-server-node-sub000/health"
	"github.com/Hushnetwork-social/hush-server-node-sub000/identity"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
	"github.com/Hushnetwork-social/hush-server-node-sub000/metrics"
	"github.com/Hushnetwork-social/hush-server-node-sub000/node"
	"github.com/Hushnetwork-social/hush-server-node-sub000/processor"
	"github.com/Hushnetwork-social/hush-server-node-sub000/rotation"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "hushnode",
		Usage:     "Node of the Hush network feeds layer",
		Copyright: "2025 Hushnetwork",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			apiAddrFlag,
			apiCorsFlag,
			verbosityFlag,
			jsonLogsFlag,
			blockIntervalFlag,
			cacheSizeFlag,
			maxMessagesFlag,
			enableMetricsFlag,
			pprofFlag,
			enableAPILogsFlag,
			enableAdminFlag,
			adminAddrFlag,
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger(ctx *cli.Context) *slog.LevelVar {
	lvl := new(slog.LevelVar)
	lvl.Set(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))
	var handler slog.Handler
	if ctx.Bool(jsonLogsFlag.Name) {
		handler = log.JSONHandlerWithLevel(os.Stderr, lvl)
	} else {
		useColor := isatty.IsTerminal(os.Stderr.Fd())
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, lvl, useColor)
	}
	log.SetDefault(log.NewLogger(handler))
	return lvl
}

func run(ctx *cli.Context) error {
	defer logger.Info("exited")
	logLevel := initLogger(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.EnableMetrics {
		metrics.InitializePrometheusMetrics()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return err
	}
	db, err := feeddb.New(filepath.Join(cfg.DataDir, "feeds.db"))
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing feed database..."); db.Close() }()

	var cache *feedcache.Cache
	if cfg.CacheSizeMB > 0 {
		cache = feedcache.New(cfg.CacheSizeMB)
	}
	store := feedstore.New(db, overlay(cache))

	blobs, err := attach.New(filepath.Join(cfg.DataDir, "attachments"))
	if err != nil {
		return err
	}

	creds, err := identity.NewKeyCredentials()
	if err != nil {
		return err
	}
	ids := identity.NewMemStore()
	chain := identity.NewMemChain(0)

	proc := processor.New(store, ids, creds, rotation.New(ids))
	defer func() { logger.Info("closing processor..."); proc.Close() }()

	handler, closeAPI := api.New(store, proc, blobs, chain, ids, api.Options{
		AllowedOrigins:         cfg.APICors,
		MaxMessagesPerResponse: cfg.MaxMessages,
		PprofOn:                cfg.Pprof,
		EnableReqLogger:        cfg.EnableAPILogs,
		EnableMetrics:          cfg.EnableMetrics,
	})
	defer closeAPI()

	srvCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	apiURL, apiClose, err := startAPIServer(cfg.APIAddr, handler)
	if err != nil {
		return err
	}
	defer apiClose()
	logger.Info("API started", "url", apiURL, "version", fullVersion())

	h := health.New(2 * cfg.BlockInterval)
	if ctx.Bool(enableAdminFlag.Name) {
		adminURL, adminClose, err := admin.StartServer(ctx.String(adminAddrFlag.Name), logLevel, h)
		if err != nil {
			return err
		}
		defer adminClose()
		logger.Info("admin server started", "url", adminURL)
	}

	n := node.New(store, proc, blobs, cache, chain, h, node.Options{
		BlockInterval: cfg.BlockInterval,
		AttachmentTTL: cfg.AttachmentTTL,
	})
	return n.Run(srvCtx)
}

// overlay keeps a typed nil out of the store's Cache interface.
func overlay(cache *feedcache.Cache) feedstore.Cache {
	if cache == nil {
		return nil
	}
	return cache
}

func startAPIServer(addr string, handler http.HandlerFunc) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listen API addr [%v]: %w", addr, err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/", func() {
		logger.Info("stopping API server...")
		srv.Close()
		goes.Wait()
	}, nil
}
