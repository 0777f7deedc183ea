// Package server exposes the checksum ledger as a read-only JSON API.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/eargollo/crcsum/internal/config"
	"github.com/eargollo/crcsum/internal/db"
)

const defaultRunsLimit = 50
const maxRunsLimit = 500

type Server struct {
	cfg    *config.Config
	store  *db.Store // read-write; used for health
	readDB *db.Store // optional read-only pool for queries
	mux    *http.ServeMux
}

// NewServer creates a server. readDB is optional: if non-nil, queries use it so
// the API stays responsive while a batch run writes (WAL allows concurrent readers).
func NewServer(cfg *config.Config, store *db.Store, readDB *db.Store) *Server {
	s := &Server{cfg: cfg, store: store, readDB: readDB, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) dbForRead() *db.Store {
	if s.readDB != nil {
		return s.readDB
	}
	return s.store
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth())
	s.mux.HandleFunc("GET /runs", s.handleRuns())
	s.mux.HandleFunc("GET /runs/{id}", s.handleRun())
	s.mux.HandleFunc("GET /runs/{id}/results", s.handleRunResults())
	s.mux.HandleFunc("/", s.handle404())
}

// ServeHTTP lets the server be mounted or tested directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive number")
				return
			}
			limit = min(n, maxRunsLimit)
		}
		runs, err := s.dbForRead().ListRuns(r.Context(), limit)
		if err != nil {
			log.Printf("[server] list runs: %v", err)
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		if runs == nil {
			runs = []db.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// runFromPath loads the run named by {id}; on failure it writes the response and returns nil.
func (s *Server) runFromPath(w http.ResponseWriter, r *http.Request) *db.Run {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return nil
	}
	run, err := s.dbForRead().GetRun(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil
	}
	if err != nil {
		log.Printf("[server] get run %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "get run failed")
		return nil
	}
	return run
}

func (s *Server) handleRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if run := s.runFromPath(w, r); run != nil {
			writeJSON(w, http.StatusOK, run)
		}
	}
}

func (s *Server) handleRunResults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := s.runFromPath(w, r)
		if run == nil {
			return
		}
		results, err := s.dbForRead().ResultsByRun(r.Context(), run.ID)
		if err != nil {
			log.Printf("[server] results for run %d: %v", run.ID, err)
			writeError(w, http.StatusInternalServerError, "list results failed")
			return
		}
		if results == nil {
			results = []db.Result{}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("db unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func (s *Server) handle404() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	}
}

// Run listens on the configured port until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(s.cfg.Port()),
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("[server] listening on %s", srv.Addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
