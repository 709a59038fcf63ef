package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scrapyard.dev/internal/catalogs"
	"scrapyard.dev/internal/persistence/indexdb"
	"scrapyard.dev/internal/session"
	"scrapyard.dev/internal/settlement"
	"scrapyard.dev/internal/transport/ws"
	"scrapyard.dev/internal/tuning"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	require.NoError(t, err)
	sess, err := session.New(session.Config{
		Tuning:   tuning.Defaults(),
		Catalogs: cats,
		Treasury: settlement.NewFunds(250),
	}, zap.NewNop())
	require.NoError(t, err)
	return sess
}

func TestWriteMetrics(t *testing.T) {
	var buf bytes.Buffer
	writeMetrics(&buf, session.Stats{Rollouts: 3, Recoveries: 1, PartKeys: 2, PartUnits: 7.5}, indexdb.Stats{DropSaveTotal: 4}, 2)
	out := buf.String()
	for _, want := range []string{
		`scrapyard_settlements_total{kind="rollout"} 3`,
		`scrapyard_settlements_total{kind="recover"} 1`,
		`scrapyard_ledger_keys{catalog="parts"} 2`,
		`scrapyard_ledger_quantity{catalog="parts"} 7.5`,
		`scrapyard_index_dropped_total{kind="save"} 4`,
		`scrapyard_ws_connections 2`,
	} {
		require.Contains(t, out, want)
	}
}

func TestMuxHealthAndLedger(t *testing.T) {
	t.Setenv("SCRAPYARD_ENABLE_ADMIN_HTTP", "true")
	sess := newTestSession(t)
	sess.Ledger().Parts.Set("strut", 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sess.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	srv := httptest.NewServer(newMux(sess, nil, zap.NewNop(), ws.Options{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/admin/v1/ledger")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st session.LedgerState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.Equal(t, 4.0, st.Parts["strut"])
	require.NotNil(t, st.Balance)
	require.Equal(t, 250.0, *st.Balance)

	resp2, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()
	require.True(t, strings.Contains(string(b), "scrapyard_queue_depth"))
}

func TestAdminDisabledInProduction(t *testing.T) {
	t.Setenv("SCRAPYARD_ENABLE_ADMIN_HTTP", "")
	t.Setenv("DEPLOY_ENV", "production")
	srv := httptest.NewServer(newMux(newTestSession(t), nil, zap.NewNop(), ws.Options{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/v1/ledger")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocketRefusesRemotePeers(t *testing.T) {
	mux := newMux(newTestSession(t), nil, zap.NewNop(), ws.Options{})
	req := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Opting in lets the request reach the upgrader, which rejects a plain GET.
	mux = newMux(newTestSession(t), nil, zap.NewNop(), ws.Options{AllowRemote: true})
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListenDefaultsToLoopback(t *testing.T) {
	fl := newRootCmd().Flags()
	require.Equal(t, "127.0.0.1:8080", fl.Lookup("addr").DefValue)
	require.Equal(t, "false", fl.Lookup("allow_remote").DefValue)
}

func TestIsLoopbackRemote(t *testing.T) {
	require.True(t, isLoopbackRemote("127.0.0.1:1234"))
	require.True(t, isLoopbackRemote("[::1]:80"))
	require.False(t, isLoopbackRemote("10.0.0.2:80"))
	require.False(t, isLoopbackRemote("garbage"))
}
