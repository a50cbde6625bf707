// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Hushnetwork-social/hush-server-node-sub000/api/attachments"
	"github.com/Hushnetwork-social/hush-server-node-sub000/api/feeds"
	"github.com/Hushnetwork-social/hush-server-node-sub000/api/subscriptions"
	"github.com/Hushnetwork-social/hush-server-node-sub000/attach"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedstore"
	"github.com/Hushnetwork-social/hush-server-node-sub000/identity"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
	"github.com/Hushnetwork-social/hush-server-node-sub000/processor"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins         string
	MaxMessagesPerResponse int
	PprofOn                bool
	EnableReqLogger        bool
	EnableMetrics          bool
}

// New assembles the node's HTTP surface. The returned closer tears
// down hijacked websocket connections.
func New(
	store *feedstore.Store,
	proc *processor.Processor,
	blobs *attach.Store,
	chain identity.BlockchainCache,
	aliases identity.AliasProvider,
	opts Options,
) (http.HandlerFunc, func()) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	feeds.New(store, proc, chain, aliases, opts.MaxMessagesPerResponse).
		Mount(router, "/feeds")
	attachments.New(store, blobs).
		Mount(router, "/attachments")
	subs := subscriptions.New(store, proc, origins)
	subs.Mount(router, "/subscriptions")

	if opts.PprofOn {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	if opts.EnableReqLogger {
		handler = RequestLoggerHandler(handler, logger)
	}

	return handler.ServeHTTP, subs.Close
}
