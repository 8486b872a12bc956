// Package agents provides the delivery agent: its data model, cohort weight
// presets, and the per-tick steering rule.
package agents

import (
	"fmt"

	"github.com/talgya/swarmdrop/internal/world"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// ResourceState is the binary inventory flag of an agent.
type ResourceState uint8

const (
	Empty ResourceState = 0
	Laden ResourceState = 100
)

func (r ResourceState) String() string {
	switch r {
	case Laden:
		return "laden"
	case Empty:
		return "empty"
	}
	return fmt.Sprintf("ResourceState(%d)", uint8(r))
}

// Weights are the blend coefficients for the four steering components.
// They are non-negative and need not sum to 1.
type Weights struct {
	Random      float64 `json:"random"`
	Destination float64 `json:"destination"`
	Alignment   float64 `json:"alignment"`
	Attraction  float64 `json:"attraction"`
}

// Validate rejects negative coefficients.
func (w Weights) Validate() error {
	if w.Random < 0 || w.Destination < 0 || w.Alignment < 0 || w.Attraction < 0 {
		return fmt.Errorf("weights must be non-negative: %+v", w)
	}
	return nil
}

// Cohort is a named weight preset shared by a group of agents and the sites
// they serve.
type Cohort struct {
	Name    string  `json:"name"`
	Weights Weights `json:"weights"`
}

// SwarmCohort uses neighbor alignment and attraction on top of the
// destination pull.
func SwarmCohort(name string) Cohort {
	return Cohort{
		Name: name,
		Weights: Weights{
			Random:      0.1,
			Destination: 0.6,
			Alignment:   0.5,
			Attraction:  0.5,
		},
	}
}

// BruteForceCohort ignores neighbors and heads straight for its destination
// with the same jitter.
func BruteForceCohort(name string) Cohort {
	return Cohort{
		Name: name,
		Weights: Weights{
			Random:      0.1,
			Destination: 0.6,
		},
	}
}

// Agent is a single delivery drone.
type Agent struct {
	ID AgentID `json:"id"`

	// Kinematics
	Position world.Vec `json:"position"`
	Heading  world.Vec `json:"heading"` // Unit or zero after Steer
	Speed    float64   `json:"speed"`
	MaxSpeed float64   `json:"max_speed"` // 0 until launched

	// Route, fixed for the agent's lifetime.
	Base      world.Vec `json:"base"`
	Target    world.Vec `json:"target"`
	SiteIndex int       `json:"site_index"` // -1 when no site was available

	Resource ResourceState `json:"resource"`
	Launched bool          `json:"launched"`
	Slowed   bool          `json:"slowed"` // A hazard clamped Speed on the last Steer

	// Communication limits
	CommRange    float64 `json:"comm_range"`
	MaxCommLinks int     `json:"max_comm_links"`

	Cohort  string  `json:"cohort"`
	Weights Weights `json:"weights"`
}

// Laden reports whether the agent is carrying a load.
func (a *Agent) Laden() bool {
	return a.Resource == Laden
}

// Destination is where the agent is currently heading: the target while
// laden, the base while empty.
func (a *Agent) Destination() world.Vec {
	if a.Laden() {
		return a.Target
	}
	return a.Base
}

// Launch brings a dormant agent online at the given cruise speed. It is a
// no-op on an agent that has already launched.
func (a *Agent) Launch(cruiseSpeed float64) bool {
	if a.Launched {
		return false
	}
	a.MaxSpeed = cruiseSpeed
	a.Launched = true
	return true
}
