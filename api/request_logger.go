// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"time"

	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
)

// RequestLoggerHandler logs method, path and duration of every request.
func RequestLoggerHandler(handler http.Handler, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		mrw := newMetricsResponseWriter(w)
		handler.ServeHTTP(mrw, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"code", mrw.statusCode,
			"duration", time.Since(now),
		)
	})
}
