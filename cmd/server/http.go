package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"scrapyard.dev/internal/persistence/indexdb"
	"scrapyard.dev/internal/session"
	"scrapyard.dev/internal/transport/ws"
)

func newMux(sess *session.Session, idx *indexdb.SQLiteIndex, logger *zap.Logger, wsOpts ws.Options) *http.ServeMux {
	wsSrv := ws.NewServer(sess, logger.Named("ws"), wsOpts)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, sess.Stats(), idx.Stats(), wsSrv.Connections())
	})

	if envBool("SCRAPYARD_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/ledger", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			st, err := sess.QueryState(ctx)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(st)
		})
	} else {
		logger.Info("admin endpoints disabled (SCRAPYARD_ENABLE_ADMIN_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	return mux
}

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(w io.Writer, st session.Stats, ix indexdb.Stats, conns int64) {
	fmt.Fprintf(w, "# HELP scrapyard_settlements_total Settlements applied to the ledger.\n")
	fmt.Fprintf(w, "# TYPE scrapyard_settlements_total counter\n")
	fmt.Fprintf(w, "scrapyard_settlements_total{kind=%q} %d\n", "rollout", st.Rollouts)
	fmt.Fprintf(w, "scrapyard_settlements_total{kind=%q} %d\n", "recover", st.Recoveries)

	fmt.Fprintf(w, "# HELP scrapyard_ledger_io_total Ledger saves and loads.\n")
	fmt.Fprintf(w, "# TYPE scrapyard_ledger_io_total counter\n")
	fmt.Fprintf(w, "scrapyard_ledger_io_total{op=%q} %d\n", "save", st.Saves)
	fmt.Fprintf(w, "scrapyard_ledger_io_total{op=%q} %d\n", "load", st.Loads)

	fmt.Fprintf(w, "# HELP scrapyard_errors_total Rejected requests.\n")
	fmt.Fprintf(w, "# TYPE scrapyard_errors_total counter\n")
	fmt.Fprintf(w, "scrapyard_errors_total %d\n", st.Errors)

	fmt.Fprintf(w, "# HELP scrapyard_ledger_keys Identities recorded in the ledger.\n")
	fmt.Fprintf(w, "# TYPE scrapyard_ledger_keys gauge\n")
	fmt.Fprintf(w, "scrapyard_ledger_keys{catalog=%q} %d\n", "parts", st.PartKeys)
	fmt.Fprintf(w, "scrapyard_ledger_keys{catalog=%q} %d\n", "resources", st.ResourceKeys)

	fmt.Fprintf(w, "# HELP scrapyard_ledger_quantity Sum of all quantities per catalog.\n")
	fmt.Fprintf(w, "# TYPE scrapyard_ledger_quantity gauge\n")
	fmt.Fprintf(w, "scrapyard_ledger_quantity{catalog=%q} %g\n", "parts", st.PartUnits)
	fmt.Fprintf(w, "scrapyard_ledger_quantity{catalog=%q} %g\n", "resources", st.ResourceAmount)

	fmt.Fprintf(w, "# HELP scrapyard_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(w, "# TYPE scrapyard_queue_depth gauge\n")
	fmt.Fprintf(w, "scrapyard_queue_depth{queue=%q} %d\n", "inbox", st.InboxDepth)
	fmt.Fprintf(w, "scrapyard_queue_depth{queue=%q} %d\n", "index", ix.QueueDepth)

	fmt.Fprintf(w, "# HELP scrapyard_index_dropped_total Index writes dropped because the writer fell behind.\n")
	fmt.Fprintf(w, "# TYPE scrapyard_index_dropped_total counter\n")
	fmt.Fprintf(w, "scrapyard_index_dropped_total{kind=%q} %d\n", "settlement", ix.DropSettlementTotal)
	fmt.Fprintf(w, "scrapyard_index_dropped_total{kind=%q} %d\n", "save", ix.DropSaveTotal)

	fmt.Fprintf(w, "# HELP scrapyard_ws_connections Open websocket connections.\n")
	fmt.Fprintf(w, "# TYPE scrapyard_ws_connections gauge\n")
	fmt.Fprintf(w, "scrapyard_ws_connections %d\n", conns)
}

func isLoopbackRemote(remoteAddr string) bool { return ws.IsLoopbackAddr(remoteAddr) }
