// Simulation owns the swarm, hazards and sites and advances them one tick at
// a time.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/swarmdrop/internal/agents"
	"github.com/talgya/swarmdrop/internal/entropy"
	"github.com/talgya/swarmdrop/internal/world"
)

// Simulation holds the complete swarm state. It is the only component that
// activates agents, flips their resource state and counts deliveries; each
// agent writes only its own kinematics during Steer and Advance.
//
// Step and Snapshot may be called from different goroutines. All other
// access must not overlap with Step.
type Simulation struct {
	mu sync.RWMutex

	Config  Config
	Agents  []*agents.Agent
	Hazards []*world.Hazard
	Sites   []*world.Site
	Tick    uint64 // Ticks processed so far

	rng     entropy.Source
	cohorts []string // Reporting order for cohort totals

	// Statistics recomputed at the end of every tick.
	Stats SimStats
}

// CohortTotal is the running delivery count of one site cohort.
type CohortTotal struct {
	Cohort     string `json:"cohort"`
	Deliveries int    `json:"deliveries"`
}

// SimStats tracks aggregate swarm statistics.
type SimStats struct {
	Launched         int           `json:"launched"`
	Laden            int           `json:"laden"`
	Slowed           int           `json:"slowed"`
	Deliveries       int           `json:"deliveries"`      // Total over the run
	Pickups          int           `json:"pickups"`         // Total over the run
	TickDeliveries   int           `json:"tick_deliveries"` // Deliveries during the last tick
	TickPickups      int           `json:"tick_pickups"`    // Pickups during the last tick
	CohortDeliveries []CohortTotal `json:"cohort_deliveries"`
}

// NewSimulation wires already-built entities together. src supplies steering
// jitter; nil falls back to a fixed-seed source.
func NewSimulation(cfg Config, swarm []*agents.Agent, hazards []*world.Hazard, sites []*world.Site, src entropy.Source) *Simulation {
	if src == nil {
		src = entropy.NewSeeded(1)
	}
	if cfg.UpdateMode == "" {
		cfg.UpdateMode = UpdateSequential
	}
	if cfg.ReversalPeriod == 0 {
		cfg.ReversalPeriod = DefaultReversalPeriod
	}

	sim := &Simulation{
		Config:  cfg,
		Agents:  swarm,
		Hazards: hazards,
		Sites:   sites,
		rng:     src,
		cohorts: cohortOrder(cfg, sites),
	}
	sim.updateStats()
	return sim
}

// Build validates cfg, lays out the world and spawns the swarm from a single
// seeded source. Each setup stage draws from its own derived source so that,
// for example, changing the hazard count does not move the sites.
func Build(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	root := entropy.NewSeeded(cfg.Seed)
	cfg.Seed = root.Seed()
	cfg.World.Seed = cfg.Seed
	cfg.World.WestCohort = cfg.West.Name
	cfg.World.EastCohort = cfg.East.Name

	hazards := world.PlaceHazards(cfg.World, root.Derive(100))
	sites := world.PlaceSites(cfg.World, root.Derive(200))

	spawner := agents.NewSpawner(cfg.Spawn, root.Derive(300))
	cohorts := map[string]agents.Cohort{
		cfg.West.Name: cfg.West,
		cfg.East.Name: cfg.East,
	}
	swarm := spawner.SpawnSwarm(cfg.NumAgents, cfg.Base, sites, cohorts, cfg.West)

	slog.Info("world built",
		"seed", cfg.Seed,
		"agents", len(swarm),
		"hazards", len(hazards),
		"sites", len(sites),
		"update_mode", cfg.UpdateMode,
		"placement", cfg.World.Placement,
	)

	return NewSimulation(cfg, swarm, hazards, sites, root.Derive(400)), nil
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Tick
}

// Step advances the simulation by exactly one tick:
//  1. increment the tick counter;
//  2. launch the next dormant agent, one per tick;
//  3. for each agent in list order, settle deliveries and pickups, then
//     steer and advance it;
//  4. reverse every hazard on the reversal cadence, then advance them;
//  5. recompute statistics and cohort totals.
func (s *Simulation) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Tick++
	s.Stats.TickDeliveries = 0
	s.Stats.TickPickups = 0

	if s.Tick <= uint64(len(s.Agents)) {
		s.Agents[s.Tick-1].Launch(s.Config.CruiseSpeed)
	}

	view := s.Agents
	if s.Config.UpdateMode == UpdateSnapshot {
		view = copySwarm(s.Agents)
	}

	for _, a := range s.Agents {
		s.transfer(a)
		a.Steer(view, s.Hazards, s.rng)
		a.Advance()
	}

	reverse := s.Tick%s.Config.ReversalPeriod == 0
	for _, h := range s.Hazards {
		if reverse {
			h.Reverse()
		}
		h.Advance()
	}
	if reverse && len(s.Hazards) > 0 {
		slog.Debug("hazards reversed", "tick", s.Tick, "count", len(s.Hazards))
	}

	s.updateStats()
}

// transfer applies at most one resource transition to a: a laden agent
// inside the first matching site's box drops off there; an empty agent
// inside the base box picks up.
func (s *Simulation) transfer(a *agents.Agent) {
	thr := s.Config.ProximityThreshold
	if a.Laden() {
		for _, site := range s.Sites {
			if site.Position.WithinBox(a.Position, thr) {
				a.Resource = agents.Empty
				site.RecordDelivery()
				s.Stats.TickDeliveries++
				s.Stats.Deliveries++
				return
			}
		}
		return
	}
	if a.Base.WithinBox(a.Position, thr) {
		a.Resource = agents.Laden
		s.Stats.TickPickups++
		s.Stats.Pickups++
	}
}

// copySwarm returns pointers to value copies of every agent.
func copySwarm(swarm []*agents.Agent) []*agents.Agent {
	copies := make([]agents.Agent, len(swarm))
	view := make([]*agents.Agent, len(swarm))
	for i, a := range swarm {
		copies[i] = *a
		view[i] = &copies[i]
	}
	return view
}

// CohortTotals returns the running delivery total per site cohort.
func (s *Simulation) CohortTotals() []CohortTotal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CohortTotal(nil), s.Stats.CohortDeliveries...)
}

// Report logs a one-line summary of the swarm.
func (s *Simulation) Report() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs := []any{
		"tick", s.Tick,
		"launched", s.Stats.Launched,
		"laden", s.Stats.Laden,
		"slowed", s.Stats.Slowed,
		"deliveries", s.Stats.Deliveries,
		"pickups", s.Stats.Pickups,
	}
	for _, ct := range s.Stats.CohortDeliveries {
		attrs = append(attrs, "cohort_"+ct.Cohort, ct.Deliveries)
	}
	slog.Info("tick report", attrs...)
}

// Summary renders the end-of-run cohort comparison.
func (s *Simulation) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := fmt.Sprintf("Run summary after %d ticks:\n", s.Tick)
	for _, ct := range s.Stats.CohortDeliveries {
		out += fmt.Sprintf("  %-10s %6d deliveries\n", ct.Cohort, ct.Deliveries)
	}
	return out
}

func (s *Simulation) updateStats() {
	launched, laden, slowed := 0, 0, 0
	for _, a := range s.Agents {
		if a.Launched {
			launched++
		}
		if a.Laden() {
			laden++
		}
		if a.Slowed {
			slowed++
		}
	}
	s.Stats.Launched = launched
	s.Stats.Laden = laden
	s.Stats.Slowed = slowed

	byCohort := make(map[string]int, len(s.cohorts))
	for _, site := range s.Sites {
		byCohort[site.Cohort] += site.Deliveries
	}
	totals := make([]CohortTotal, 0, len(s.cohorts))
	for _, name := range s.cohorts {
		totals = append(totals, CohortTotal{Cohort: name, Deliveries: byCohort[name]})
	}
	s.Stats.CohortDeliveries = totals
}

// cohortOrder lists the configured cohorts first, then any other cohort
// carried by a site, in first-seen order.
func cohortOrder(cfg Config, sites []*world.Site) []string {
	var order []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		order = append(order, name)
	}
	add(cfg.West.Name)
	add(cfg.East.Name)
	for _, site := range sites {
		add(site.Cohort)
	}
	return order
}
