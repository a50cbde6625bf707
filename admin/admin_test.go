// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub000/health"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
)

func newServer(t *testing.T) (*httptest.Server, *slog.LevelVar, *health.Health) {
	lvl := new(slog.LevelVar)
	lvl.Set(log.LevelInfo)
	h := health.New(time.Minute)
	ts := httptest.NewServer(HTTPHandler(lvl, h))
	t.Cleanup(ts.Close)
	return ts, lvl, h
}

func TestLogLevelRoundtrip(t *testing.T) {
	ts, lvl, _ := newServer(t)

	res, err := http.Get(ts.URL + "/admin/loglevel")
	require.NoError(t, err)
	defer res.Body.Close()
	var out logLevelResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Equal(t, log.LevelInfo.String(), out.CurrentLevel)

	body, _ := json.Marshal(logLevelRequest{Level: "debug"})
	res, err = http.Post(ts.URL+"/admin/loglevel", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, log.LevelDebug, lvl.Level())

	// unknown level is rejected and leaves the level untouched
	body, _ = json.Marshal(logLevelRequest{Level: "loud"})
	res, err = http.Post(ts.URL+"/admin/loglevel", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, log.LevelDebug, lvl.Level())
}

func TestHealthEndpoint(t *testing.T) {
	ts, _, h := newServer(t)

	// no tip seen yet
	res, err := http.Get(ts.URL + "/admin/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	h.NewChainTip(7)
	res, err = http.Get(ts.URL + "/admin/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var status health.Status
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	assert.True(t, status.Healthy)
	assert.Equal(t, uint64(7), uint64(status.ChainTip))
}
