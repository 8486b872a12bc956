package viewer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/talgya/swarmdrop/internal/agents"
	"github.com/talgya/swarmdrop/internal/api"
	"github.com/talgya/swarmdrop/internal/engine"
	"github.com/talgya/swarmdrop/internal/world"
)

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	screen.SetSize(80, 24)
	t.Cleanup(screen.Fini)
	return screen
}

func TestCellMapping(t *testing.T) {
	r := NewRenderer(newScreen(t), 100)

	tests := []struct {
		name   string
		pos    world.Vec
		x, y   int
		inside bool
	}{
		{"center", world.V(0, 0), 40, 11, true},
		{"top left", world.V(-100, 100), 0, 0, true},
		{"bottom right edge clamps", world.V(100, -100), 79, 22, true},
		{"west of world", world.V(-101, 0), 0, 0, false},
		{"above world", world.V(0, 150), 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, ok := r.Cell(tt.pos)
			if ok != tt.inside {
				t.Fatalf("inside = %v, want %v", ok, tt.inside)
			}
			if ok && (x != tt.x || y != tt.y) {
				t.Fatalf("cell = (%d,%d), want (%d,%d)", x, y, tt.x, tt.y)
			}
		})
	}
}

func TestDrawColorsAgentsBySpeed(t *testing.T) {
	screen := newScreen(t)
	r := NewRenderer(screen, 100)

	snap := &engine.Snapshot{
		Tick: 7,
		Agents: []engine.AgentView{
			{ID: 1, Position: world.V(0, 0)},
			{ID: 2, Position: world.V(50, 0), Slowed: true},
		},
		Hazards: []engine.HazardView{{Position: world.V(-50, 0), Radius: 20}},
		Sites:   []engine.SiteView{{Index: 3, Position: world.V(0, 50), Deliveries: 12}},
		Base:    world.V(0, -50),
		Totals:  []engine.CohortTotal{{Cohort: "swarm", Deliveries: 12}, {Cohort: "brute", Deliveries: 4}},
	}
	r.Draw(snap)

	check := func(pos world.Vec, want rune, wantFg tcell.Color) {
		t.Helper()
		x, y, _ := r.Cell(pos)
		ch, _, style, _ := screen.GetContent(x, y)
		fg, _, _ := style.Decompose()
		if ch != want || fg != wantFg {
			t.Errorf("cell at %v = %q fg %v, want %q fg %v", pos, ch, fg, want, wantFg)
		}
	}
	check(world.V(0, 0), AgentRune, tcell.ColorGreen)
	check(world.V(50, 0), AgentRune, tcell.ColorRed)
	check(world.V(-50, 0), HazardRune, tcell.ColorGray)
	check(world.V(0, 50), SiteRune, tcell.ColorYellow)
	check(world.V(0, -50), BaseRune, tcell.ColorBlue)

	// Caption to the right of the site marker.
	sx, sy, _ := r.Cell(world.V(0, 50))
	var caption []rune
	for x := sx + 2; x < sx+6; x++ {
		ch, _, _, _ := screen.GetContent(x, sy)
		caption = append(caption, ch)
	}
	if string(caption) != "3:12" {
		t.Errorf("site caption = %q, want %q", string(caption), "3:12")
	}

	var status []rune
	for x := 0; x < 80; x++ {
		ch, _, _, _ := screen.GetContent(x, 23)
		status = append(status, ch)
	}
	if !strings.HasPrefix(string(status), StatusText(snap)) {
		t.Errorf("status line = %q", string(status))
	}
}

func TestStatusText(t *testing.T) {
	snap := &engine.Snapshot{
		Tick:   42,
		Totals: []engine.CohortTotal{{Cohort: "swarm", Deliveries: 5}, {Cohort: "brute", Deliveries: 2}},
		Stats:  engine.SimStats{Slowed: 3},
	}
	want := " tick 42 | swarm 5 | brute 2 | slowed 3 | [q]uit"
	if got := StatusText(snap); got != want {
		t.Fatalf("StatusText = %q, want %q", got, want)
	}
}

func TestObserverSnapshot(t *testing.T) {
	cfg := engine.DefaultConfig()
	swarm := []*agents.Agent{{ID: 1, Position: world.V(3, 4), Resource: agents.Laden}}
	sites := []*world.Site{world.NewSite(0, world.V(-600, 0), cfg.West.Name)}
	sim := engine.NewSimulation(cfg, swarm, nil, sites, nil)
	sim.Step()

	ts := httptest.NewServer((&api.Server{Sim: sim, Eng: engine.NewEngine()}).Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	obs := NewObserver(ts.URL)
	if err := obs.WaitForAPI(ctx); err != nil {
		t.Fatalf("WaitForAPI: %v", err)
	}
	st, err := obs.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Tick != 1 || st.Agents != 1 || st.Sites != 1 {
		t.Fatalf("status = %+v", st)
	}

	snap, err := obs.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Tick != 1 || len(snap.Agents) != 1 || !snap.Agents[0].Launched {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Sites[0].Label != "Site: 0" {
		t.Fatalf("site label = %q", snap.Sites[0].Label)
	}
}

func TestObserverErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	obs := NewObserver(ts.URL)
	if _, err := obs.Snapshot(context.Background()); err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("Snapshot error = %v, want status 500", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := obs.WaitForAPI(ctx); err == nil {
		t.Fatal("WaitForAPI should give up when the context expires")
	}
}
