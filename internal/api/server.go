// Package api provides the HTTP API for observing a running swarm.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/talgya/swarmdrop/internal/engine"
	"github.com/talgya/swarmdrop/internal/persistence"
)

// Snapshot requests allowed per client per second.
const snapshotRate = 20

// Server serves the swarm state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // nil = history and save disabled
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	snapshotLimiter := NewRateLimiter(snapshotRate, time.Second)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/snapshot", RateLimitMiddleware(snapshotLimiter, s.handleSnapshot))
	mux.HandleFunc("/api/v1/sites", s.handleSites)
	mux.HandleFunc("/api/v1/totals", s.handleTotals)
	mux.HandleFunc("/api/v1/geojson", s.handleGeoJSON)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/runs/latest", s.handleLatestRun)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/save", s.adminOnly(s.handleSave))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "db", s.DB != nil)

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no SWARMDROP_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	status := map[string]any{
		"name":    "swarmdrop",
		"run_id":  s.RunID,
		"tick":    snap.Tick,
		"agents":  len(snap.Agents),
		"hazards": len(snap.Hazards),
		"sites":   len(snap.Sites),
		"stats":   snap.Stats,
		"totals":  snap.Totals,
		"speed":   0.0,
		"running": false,
		"update":  s.Sim.Config.UpdateMode,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot().Sites)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"tick":       snap.Tick,
		"deliveries": snap.Stats.Deliveries,
		"pickups":    snap.Stats.Pickups,
		"cohorts":    snap.Totals,
	})
}

// handleGeoJSON exports the current frame as a FeatureCollection. Every
// feature carries a "kind" property: agent, hazard, site, base or region.
func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc := snapshotFeatures(s.Sim.Snapshot(), s.Sim.Config)
	data, err := fc.MarshalJSON()
	if err != nil {
		slog.Error("geojson encode failed", "error", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

func snapshotFeatures(snap engine.Snapshot, cfg engine.Config) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	base := geojson.NewFeature(snap.Base.Point())
	base.Properties["kind"] = "base"
	fc.Append(base)

	regions := []struct {
		cohort string
		bound  orb.Bound
	}{
		{cfg.West.Name, cfg.World.West},
		{cfg.East.Name, cfg.World.East},
	}
	for _, rg := range regions {
		f := geojson.NewFeature(rg.bound.ToPolygon())
		f.Properties["kind"] = "region"
		f.Properties["cohort"] = rg.cohort
		fc.Append(f)
	}

	for _, site := range snap.Sites {
		f := geojson.NewFeature(site.Position.Point())
		f.Properties["kind"] = "site"
		f.Properties["index"] = site.Index
		f.Properties["label"] = site.Label
		f.Properties["cohort"] = site.Cohort
		f.Properties["deliveries"] = site.Deliveries
		fc.Append(f)
	}
	for _, h := range snap.Hazards {
		f := geojson.NewFeature(h.Position.Point())
		f.Properties["kind"] = "hazard"
		f.Properties["radius"] = h.Radius
		fc.Append(f)
	}
	for _, a := range snap.Agents {
		f := geojson.NewFeature(a.Position.Point())
		f.Properties["kind"] = "agent"
		f.Properties["id"] = a.ID
		f.Properties["slowed"] = a.Slowed
		f.Properties["laden"] = a.Laden
		f.Properties["launched"] = a.Launched
		f.Properties["cohort"] = a.Cohort
		fc.Append(f)
	}
	return fc
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 10000 {
			limit = v
		}
	}

	rows, err := s.DB.CohortHistory(s.RunID, limit)
	if err != nil {
		slog.Error("history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.CohortRow{}
	}
	writeJSON(w, rows)
}

// handleLatestRun reports the most recently started run and its last saved
// site totals, as stored in the database.
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := s.DB.LatestRun()
	if errors.Is(err, persistence.ErrNoRun) {
		http.Error(w, "no run recorded", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("latest run query failed", "error", err)
		http.Error(w, "run query failed", http.StatusInternalServerError)
		return
	}

	sites, err := s.DB.SiteTotals(run.ID)
	if err != nil {
		slog.Error("site totals query failed", "run_id", run.ID, "error", err)
		http.Error(w, "run query failed", http.StatusInternalServerError)
		return
	}
	if sites == nil {
		sites = []persistence.SiteRow{}
	}

	writeJSON(w, map[string]any{
		"run":   run,
		"sites": sites,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveTotals(s.RunID, s.Sim); err != nil {
		slog.Error("totals save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "totals saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
