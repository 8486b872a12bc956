// Agent spawning: every agent starts at the base, laden and dormant, bound
// to a randomly chosen delivery site and that site's cohort weights.
package agents

import (
	"github.com/talgya/swarmdrop/internal/entropy"
	"github.com/talgya/swarmdrop/internal/world"
)

// SpawnConfig holds the per-agent constants set at creation.
type SpawnConfig struct {
	CommRange      float64
	MaxCommLinks   int
	InitialHeading float64 // Initial heading components are drawn from [-InitialHeading, InitialHeading)
}

// DefaultSpawnConfig returns the reference communication limits.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{
		CommRange:      40,
		MaxCommLinks:   30,
		InitialHeading: 3,
	}
}

// Spawner creates agents for the simulation.
type Spawner struct {
	cfg    SpawnConfig
	rng    entropy.Source
	nextID AgentID
}

// NewSpawner creates an agent spawner drawing from src.
func NewSpawner(cfg SpawnConfig, src entropy.Source) *Spawner {
	return &Spawner{
		cfg:    cfg,
		rng:    src,
		nextID: 1,
	}
}

// SpawnSwarm creates count agents at base. Each picks a site uniformly at
// random and takes the weights of that site's cohort; cohorts missing from
// the map fall back to fallback. With no sites, agents target the base.
func (s *Spawner) SpawnSwarm(count int, base world.Vec, sites []*world.Site, cohorts map[string]Cohort, fallback Cohort) []*Agent {
	if count <= 0 {
		return nil
	}
	swarm := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		var site *world.Site
		if len(sites) > 0 {
			site = sites[s.rng.Intn(len(sites))]
		}
		cohort := fallback
		if site != nil {
			if c, ok := cohorts[site.Cohort]; ok {
				cohort = c
			}
		}
		swarm = append(swarm, s.Spawn(base, site, cohort))
	}
	return swarm
}

// Spawn creates a single dormant agent. A nil site makes the base the target.
func (s *Spawner) Spawn(base world.Vec, site *world.Site, cohort Cohort) *Agent {
	id := s.nextID
	s.nextID++

	target, siteIndex := base, -1
	if site != nil {
		target, siteIndex = site.Position, site.Index
	}

	h := s.cfg.InitialHeading
	return &Agent{
		ID:           id,
		Position:     base,
		Heading:      world.V(entropy.Uniform(s.rng, -h, h), entropy.Uniform(s.rng, -h, h)),
		Base:         base,
		Target:       target,
		SiteIndex:    siteIndex,
		Resource:     Laden,
		CommRange:    s.cfg.CommRange,
		MaxCommLinks: s.cfg.MaxCommLinks,
		Cohort:       cohort.Name,
		Weights:      cohort.Weights,
	}
}
