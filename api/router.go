package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// NewRouter wires the status routes. metrics may be nil.
func NewRouter(board *Board, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthHandler(board)).Methods(http.MethodGet)
	r.HandleFunc("/status", statusHandler(board)).Methods(http.MethodGet)
	r.HandleFunc("/zones", zonesHandler(board)).Methods(http.MethodGet)
	r.HandleFunc("/zones/{name}", zoneHandler(board)).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	return r
}

// NewServer wraps the router with access logging and panic recovery.
func NewServer(addr string, router http.Handler, accessLog io.Writer, log *slog.Logger) *http.Server {
	h := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slogPrintln{log}),
		handlers.PrintRecoveryStack(false),
	)(router)
	if accessLog != nil {
		h = handlers.CombinedLoggingHandler(accessLog, h)
	}
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func healthHandler(board *Board) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s, ok := board.Get()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "last_frame": s.Time})
	}
}

func statusHandler(board *Board) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s, _ := board.Get()
		writeJSON(w, http.StatusOK, s)
	}
}

func zonesHandler(board *Board) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s, _ := board.Get()
		if s.Zones == nil {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		writeJSON(w, http.StatusOK, s.Zones)
	}
}

func zoneHandler(board *Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		s, _ := board.Get()
		for _, z := range s.Zones {
			if strings.EqualFold(z.Name, name) {
				writeJSON(w, http.StatusOK, z)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("zone %q not found", name)})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type slogPrintln struct{ log *slog.Logger }

func (l slogPrintln) Println(args ...interface{}) {
	l.log.Error("http handler panic", "detail", fmt.Sprint(args...))
}
