package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/swarmdrop/internal/agents"
	"github.com/talgya/swarmdrop/internal/world"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// UpdateMode selects which swarm state each agent's steering reads.
type UpdateMode string

const (
	// UpdateSequential steers every agent against the live swarm, so agents
	// earlier in the list have already moved this tick when later ones look
	// at them.
	UpdateSequential UpdateMode = "sequential"
	// UpdateSnapshot steers every agent against a copy of the swarm taken
	// before the pass, making steering independent of list order.
	UpdateSnapshot UpdateMode = "snapshot"
)

// Reference constants.
const (
	DefaultNumAgents          = 500
	DefaultCruiseSpeed        = 4.0
	DefaultProximityThreshold = 5.0
	DefaultReversalPeriod     = 100
)

// Config is the full set of named constants a simulation is built from.
type Config struct {
	Seed int64 // 0 = crypto-random seed

	NumAgents          int
	CruiseSpeed        float64
	ProximityThreshold float64 // Half-width of the delivery and pickup boxes
	ReversalPeriod     uint64  // Hazards reverse on every tick divisible by this
	UpdateMode         UpdateMode

	Base  world.Vec
	Spawn agents.SpawnConfig
	World world.GenConfig

	// Weight presets for the agents serving west and east sites.
	West agents.Cohort
	East agents.Cohort
}

// DefaultConfig returns the reference swarm: 500 agents, 400 hazards and
// 10 sites, with the swarm-intelligent preset in the west and the
// brute-force preset in the east.
func DefaultConfig() Config {
	return Config{
		NumAgents:          DefaultNumAgents,
		CruiseSpeed:        DefaultCruiseSpeed,
		ProximityThreshold: DefaultProximityThreshold,
		ReversalPeriod:     DefaultReversalPeriod,
		UpdateMode:         UpdateSequential,
		Spawn:              agents.DefaultSpawnConfig(),
		World:              world.DefaultGenConfig(),
		West:               agents.SwarmCohort("swarm"),
		East:               agents.BruteForceCohort("brute"),
	}
}

// Validate checks the configuration. Zero counts are allowed and simply
// produce an empty world.
func (c Config) Validate() error {
	if c.NumAgents < 0 {
		return fmt.Errorf("%w: num agents must not be negative: %d", ErrInvalidConfig, c.NumAgents)
	}
	if c.CruiseSpeed < 0 {
		return fmt.Errorf("%w: cruise speed must not be negative: %v", ErrInvalidConfig, c.CruiseSpeed)
	}
	if c.ProximityThreshold <= 0 {
		return fmt.Errorf("%w: proximity threshold must be positive: %v", ErrInvalidConfig, c.ProximityThreshold)
	}
	if c.ReversalPeriod == 0 {
		return fmt.Errorf("%w: reversal period must be positive", ErrInvalidConfig)
	}
	switch c.UpdateMode {
	case UpdateSequential, UpdateSnapshot:
	default:
		return fmt.Errorf("%w: unknown update mode %q", ErrInvalidConfig, c.UpdateMode)
	}
	if c.Spawn.CommRange < 0 || c.Spawn.MaxCommLinks < 0 {
		return fmt.Errorf("%w: communication limits must not be negative", ErrInvalidConfig)
	}
	if err := c.World.Validate(); err != nil {
		return fmt.Errorf("%w: world: %v", ErrInvalidConfig, err)
	}
	for _, cohort := range []agents.Cohort{c.West, c.East} {
		if cohort.Name == "" {
			return fmt.Errorf("%w: cohort name must not be empty", ErrInvalidConfig)
		}
		if err := cohort.Weights.Validate(); err != nil {
			return fmt.Errorf("%w: cohort %s: %v", ErrInvalidConfig, cohort.Name, err)
		}
	}
	if c.West.Name == c.East.Name {
		return fmt.Errorf("%w: cohort names must differ", ErrInvalidConfig)
	}
	return nil
}
