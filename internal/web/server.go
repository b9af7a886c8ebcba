// Package web serves the pipeline's outputs over HTTP: the latest data
// quality report, the match provenance, and the timeline CSVs.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/nyc-housing-linkage/internal/store"
)

// Server exposes pipeline outputs from the data and reports directories.
type Server struct {
	store      *store.Store
	reportsDir string
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, st *store.Store, reportsDir string) *Server {
	s := &Server{
		store:      st,
		reportsDir: reportsDir,
		router:     mux.NewRouter(),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/report", s.handleReport).Methods("GET")
	s.router.HandleFunc("/matches", s.handleMatches).Methods("GET")
	s.router.HandleFunc("/timelines/{financing}", s.handleTimeline).Methods("GET")
}

// Handler returns the configured router, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleReport serves the newest quality report from the reports dir.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	entries, err := filepath.Glob(filepath.Join(s.reportsDir, "*.txt"))
	if err != nil || len(entries) == 0 {
		http.Error(w, "no quality report available", http.StatusNotFound)
		return
	}
	sort.Strings(entries)
	latest := entries[len(entries)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		http.Error(w, "failed to read report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	s.serveCSV(w, s.store.ProcessedPath(store.MatchesFile))
}

// handleTimeline serves a financing-partitioned timeline CSV. The path
// segment is either "hpd" or "private".
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	var name string
	switch mux.Vars(r)["financing"] {
	case "hpd":
		name = store.TimelineHPD
	case "private":
		name = store.TimelinePriv
	default:
		http.Error(w, "unknown financing stream, want hpd or private", http.StatusNotFound)
		return
	}
	s.serveCSV(w, s.store.ProcessedPath(name))
}

func (s *Server) serveCSV(w http.ResponseWriter, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "snapshot not generated yet", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read snapshot", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	w.Write(data)
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		fmt.Printf("Serving pipeline outputs on http://%s\n", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server error: %v\n", err)
		}
	}()

	<-stop
	fmt.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
