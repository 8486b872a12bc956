package engine

import (
	"github.com/talgya/swarmdrop/internal/agents"
	"github.com/talgya/swarmdrop/internal/world"
)

// Snapshot is the read-only view a renderer pulls after each tick. It shares
// no memory with the simulation.
type Snapshot struct {
	Tick    uint64        `json:"tick"`
	Base    world.Vec     `json:"base"`
	Agents  []AgentView   `json:"agents"`
	Hazards []HazardView  `json:"hazards"`
	Sites   []SiteView    `json:"sites"`
	Totals  []CohortTotal `json:"totals"`
	Stats   SimStats      `json:"stats"`
}

// AgentView is what a renderer needs to draw one agent. Slowed picks the
// marker color.
type AgentView struct {
	ID       agents.AgentID `json:"id"`
	Position world.Vec      `json:"position"`
	Slowed   bool           `json:"slowed"`
	Laden    bool           `json:"laden"`
	Launched bool           `json:"launched"`
	Cohort   string         `json:"cohort"`
}

// HazardView is a hazard's drawable state.
type HazardView struct {
	Position world.Vec `json:"position"`
	Radius   float64   `json:"radius"`
}

// SiteView is a site's drawable state and on-screen text.
type SiteView struct {
	Index      int       `json:"index"`
	Position   world.Vec `json:"position"`
	Label      string    `json:"label"`
	Cohort     string    `json:"cohort"`
	Deliveries int       `json:"deliveries"`
}

// Snapshot copies the current state for rendering.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Tick:    s.Tick,
		Base:    s.Config.Base,
		Agents:  make([]AgentView, 0, len(s.Agents)),
		Hazards: make([]HazardView, 0, len(s.Hazards)),
		Sites:   make([]SiteView, 0, len(s.Sites)),
		Totals:  append([]CohortTotal{}, s.Stats.CohortDeliveries...),
		Stats:   s.Stats,
	}
	snap.Stats.CohortDeliveries = snap.Totals

	for _, a := range s.Agents {
		snap.Agents = append(snap.Agents, AgentView{
			ID:       a.ID,
			Position: a.Position,
			Slowed:   a.Slowed,
			Laden:    a.Laden(),
			Launched: a.Launched,
			Cohort:   a.Cohort,
		})
	}
	for _, h := range s.Hazards {
		snap.Hazards = append(snap.Hazards, HazardView{
			Position: h.Position,
			Radius:   h.DetectionRadius,
		})
	}
	for _, site := range s.Sites {
		snap.Sites = append(snap.Sites, SiteView{
			Index:      site.Index,
			Position:   site.Position,
			Label:      site.Label,
			Cohort:     site.Cohort,
			Deliveries: site.Deliveries,
		})
	}
	return snap
}
