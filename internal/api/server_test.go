package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/talgya/swarmdrop/internal/agents"
	"github.com/talgya/swarmdrop/internal/engine"
	"github.com/talgya/swarmdrop/internal/persistence"
	"github.com/talgya/swarmdrop/internal/world"
)

// testServer has two agents, one hazard and two sites; agent 1 sits on the
// west site and delivers on the first tick.
func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.CruiseSpeed = 0
	swarm := []*agents.Agent{
		{ID: 1, Position: world.V(1, 1), Base: world.V(400, 400), Resource: agents.Laden, Cohort: cfg.West.Name},
		{ID: 2, Position: world.V(-300, 0), Base: world.V(400, 400), Resource: agents.Laden, Cohort: cfg.East.Name},
	}
	hazards := []*world.Hazard{world.NewHazard(world.V(200, 200), world.V(1, 0), 20)}
	sites := []*world.Site{
		world.NewSite(0, world.V(0, 0), cfg.West.Name),
		world.NewSite(1, world.V(800, 0), cfg.East.Name),
	}
	sim := engine.NewSimulation(cfg, swarm, hazards, sites, nil)
	return &Server{Sim: sim, Eng: engine.NewEngine(), AdminKey: "secret"}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func post(h http.Handler, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	s := testServer(t)
	s.Sim.Step()

	rec := get(t, s.Handler(), "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var body struct {
		Tick    uint64               `json:"tick"`
		Agents  int                  `json:"agents"`
		Sites   int                  `json:"sites"`
		Speed   float64              `json:"speed"`
		Running bool                 `json:"running"`
		Totals  []engine.CohortTotal `json:"totals"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Tick != 1 || body.Agents != 2 || body.Sites != 2 {
		t.Fatalf("status = %+v", body)
	}
	if body.Speed != 1 || body.Running {
		t.Fatalf("engine state = speed %v running %v, want 1/false", body.Speed, body.Running)
	}
	if len(body.Totals) != 2 || body.Totals[0].Deliveries != 1 {
		t.Fatalf("totals = %+v, want west with 1 delivery first", body.Totals)
	}
}

func TestSnapshotAndSites(t *testing.T) {
	s := testServer(t)
	s.Sim.Step()
	h := s.Handler()

	rec := get(t, h, "/api/v1/snapshot")
	var snap engine.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Agents) != 2 || len(snap.Hazards) != 1 || len(snap.Sites) != 2 {
		t.Fatalf("snapshot counts = %d/%d/%d", len(snap.Agents), len(snap.Hazards), len(snap.Sites))
	}
	if snap.Agents[0].Laden {
		t.Fatal("agent 1 should have delivered")
	}

	rec = get(t, h, "/api/v1/sites")
	var sites []engine.SiteView
	if err := json.NewDecoder(rec.Body).Decode(&sites); err != nil {
		t.Fatalf("decode sites: %v", err)
	}
	if sites[0].Deliveries != 1 || sites[0].Label != "Site: 0" {
		t.Fatalf("sites = %+v", sites)
	}
}

func TestGeoJSON(t *testing.T) {
	s := testServer(t)
	rec := get(t, s.Handler(), "/api/v1/geojson")
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("content type = %q", ct)
	}
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")]++
	}
	want := map[string]int{"base": 1, "region": 2, "site": 2, "hazard": 1, "agent": 2}
	for k, n := range want {
		if kinds[k] != n {
			t.Errorf("%s features = %d, want %d", k, kinds[k], n)
		}
	}
}

func TestAdminEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		adminKey string
		token    string
		body     string
		want     int
	}{
		{"disabled without key", "", "", `{"speed":2}`, http.StatusForbidden},
		{"missing token", "secret", "", `{"speed":2}`, http.StatusUnauthorized},
		{"wrong token", "secret", "nope", `{"speed":2}`, http.StatusUnauthorized},
		{"bad json", "secret", "secret", `{`, http.StatusBadRequest},
		{"out of range", "secret", "secret", `{"speed":5000}`, http.StatusBadRequest},
		{"ok", "secret", "secret", `{"speed":2}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t)
			s.AdminKey = tt.adminKey
			rec := post(s.Handler(), "/api/v1/speed", tt.body, tt.token)
			if rec.Code != tt.want {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusOK && s.Eng.Speed() != 2 {
				t.Fatalf("engine speed = %v, want 2", s.Eng.Speed())
			}
		})
	}
}

func TestSpeedGetIsPublic(t *testing.T) {
	s := testServer(t)
	rec := get(t, s.Handler(), "/api/v1/speed")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestHistoryWithoutDB(t *testing.T) {
	s := testServer(t)
	h := s.Handler()
	if rec := get(t, h, "/api/v1/history"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("history code = %d, want 503", rec.Code)
	}
	if rec := post(h, "/api/v1/save", "", "secret"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("save code = %d, want 503", rec.Code)
	}
}

func TestSaveAndHistory(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := testServer(t)
	s.DB = db
	s.RunID = persistence.NewRunID()
	if _, err := db.StartRun(s.RunID, s.Sim.Config); err != nil {
		t.Fatal(err)
	}
	s.Sim.Step()
	h := s.Handler()

	if rec := get(t, h, "/api/v1/save"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET save code = %d, want 405", rec.Code)
	}
	if rec := post(h, "/api/v1/save", "", "secret"); rec.Code != http.StatusOK {
		t.Fatalf("save code = %d: %s", rec.Code, rec.Body.String())
	}

	rec := get(t, h, "/api/v1/history?limit=5")
	var rows []persistence.CohortRow
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(rows) != 2 || rows[0].Tick != 1 || rows[0].Deliveries != 1 {
		t.Fatalf("history = %+v", rows)
	}
}

func TestLatestRun(t *testing.T) {
	s := testServer(t)
	if rec := get(t, s.Handler(), "/api/v1/runs/latest"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("no db code = %d, want 503", rec.Code)
	}

	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s.DB = db
	h := s.Handler()

	if rec := get(t, h, "/api/v1/runs/latest"); rec.Code != http.StatusNotFound {
		t.Fatalf("empty db code = %d, want 404", rec.Code)
	}

	s.RunID = persistence.NewRunID()
	if _, err := db.StartRun(s.RunID, s.Sim.Config); err != nil {
		t.Fatal(err)
	}
	s.Sim.Step()
	if rec := post(h, "/api/v1/save", "", "secret"); rec.Code != http.StatusOK {
		t.Fatalf("save code = %d: %s", rec.Code, rec.Body.String())
	}

	rec := get(t, h, "/api/v1/runs/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Run   persistence.Run     `json:"run"`
		Sites []persistence.SiteRow `json:"sites"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Run.ID != s.RunID || body.Run.LastTick != 1 {
		t.Fatalf("run = %+v, want id %s at tick 1", body.Run, s.RunID)
	}
	if len(body.Sites) != 2 || body.Sites[0].Deliveries != 1 || body.Sites[1].Deliveries != 0 {
		t.Fatalf("sites = %+v", body.Sites)
	}
}

func TestCORS(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight code = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own budget")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("retry after = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("budget should reset after the window")
	}

	now = now.Add(5 * time.Minute)
	rl.cleanup()
	if len(rl.buckets) != 0 {
		t.Fatalf("cleanup left %d buckets", len(rl.buckets))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	do := func(remote, xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec.Code
	}

	if code := do("10.0.0.1:5000", ""); code != http.StatusOK {
		t.Fatalf("first = %d", code)
	}
	if code := do("10.0.0.1:5001", ""); code != http.StatusTooManyRequests {
		t.Fatalf("same host, new port = %d, want 429", code)
	}
	if code := do("10.0.0.1:5002", "192.168.1.9, 10.0.0.1"); code != http.StatusOK {
		t.Fatalf("forwarded client = %d, want 200", code)
	}
}
