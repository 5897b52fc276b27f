package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hellod/internal/core/stats"
	"hellod/internal/shared/types"
)

func newTestServer(t *testing.T, cfg types.WebConf) (*httptest.Server, *stats.Stats, *Hub) {
	t.Helper()
	st := stats.New(0)
	hub := NewHub()
	go hub.Run()
	srv := httptest.NewServer(NewMux(cfg, st, st.Registry(), hub))
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return srv, st, hub
}

func TestHandleStatus_ReturnsSnapshot(t *testing.T) {
	srv, st, _ := newTestServer(t, types.WebConf{})
	st.ConnAccepted()
	st.ConnClosed(stats.ConnRecord{TraceID: "abc", ClientIP: "127.0.0.1:5000", BytesRead: 18, BytesWritten: 73})

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap stats.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, uint64(1), snap.Accepted)
	require.Len(t, snap.Recent, 1)
	assert.Equal(t, "abc", snap.Recent[0].TraceID)
	assert.Equal(t, 73, snap.Recent[0].BytesWritten)
}

func TestHandleStatus_RejectsPost(t *testing.T) {
	srv, _, _ := newTestServer(t, types.WebConf{})

	resp, err := http.Post(srv.URL+"/api/status", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBasicAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, types.WebConf{User: "admin", Password: "secret"})

	t.Run("Missing Credentials", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/status")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Wrong Password", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/metrics", nil)
		req.SetBasicAuth("admin", "wrong")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Valid Credentials", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
		req.SetBasicAuth("admin", "secret")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv, st, _ := newTestServer(t, types.WebConf{})
	st.ConnAccepted()
	st.ConnAccepted()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "hellod_connections_accepted_total 2")
	assert.Contains(t, string(body), "hellod_connections_active 2")
}

func dialWs(t *testing.T, srv *httptest.Server, hub *Hub) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestHub_BroadcastsConnLog(t *testing.T) {
	srv, _, hub := newTestServer(t, types.WebConf{})
	conn := dialWs(t, srv, hub)

	hub.BroadcastConnLog(stats.ConnRecord{TraceID: "t-1", BytesWritten: 73})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string           `json:"type"`
		Data stats.ConnRecord `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgConnLog, msg.Type)
	assert.Equal(t, "t-1", msg.Data.TraceID)
	assert.Equal(t, 73, msg.Data.BytesWritten)
}

func TestHub_BroadcastsDashboardUpdate(t *testing.T) {
	srv, _, hub := newTestServer(t, types.WebConf{})
	conn := dialWs(t, srv, hub)

	hub.BroadcastDashboardUpdate(&DashboardStats{Accepted: 3, ActiveConnections: 1, WriteRate: 219, Viewers: hub.ClientCount()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string         `json:"type"`
		Data DashboardStats `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgStatsUpdate, msg.Type)
	assert.Equal(t, uint64(3), msg.Data.Accepted)
	assert.Equal(t, uint64(219), msg.Data.WriteRate)
	assert.Equal(t, 1, msg.Data.Viewers)
}

func TestHub_UnregistersClosedClient(t *testing.T) {
	srv, _, hub := newTestServer(t, types.WebConf{})
	conn := dialWs(t, srv, hub)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStartServer_Disabled(t *testing.T) {
	var wg sync.WaitGroup
	st := stats.New(0)
	srv, err := StartServer(&wg, types.WebConf{Port: 0}, st, st.Registry(), NewHub())
	assert.NoError(t, err)
	assert.Nil(t, srv)
	wg.Wait()
}
