// World setup: delivery sites in two cohort regions and hazards scattered over
// the plane, either uniformly or clustered by a simplex density field.
package world

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
	"github.com/paulmach/orb"

	"github.com/talgya/swarmdrop/internal/entropy"
)

// Placement selects how hazards are scattered at setup.
type Placement string

const (
	PlacementUniform   Placement = "uniform"   // Every integer point in the extent equally likely
	PlacementClustered Placement = "clustered" // Biased toward peaks of a simplex noise field
)

// DefaultExtent is the half-width of the reference world.
const DefaultExtent = 970

// GenConfig holds world setup parameters.
type GenConfig struct {
	Extent       float64   // Hazards are placed in [-Extent, Extent) on both axes
	NumSites     int       // First half goes to West, the rest to East
	NumHazards   int
	HazardRadius float64   // Detection half-width for every hazard
	Placement    Placement // Hazard scattering strategy
	Seed         int64     // Noise field seed for clustered placement

	West       orb.Bound // Region for the first cohort's sites
	East       orb.Bound // Region for the second cohort's sites
	WestCohort string
	EastCohort string
}

// DefaultGenConfig returns the reference layout: a 1940-unit square world with
// sites on the far west and far east edges.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Extent:       DefaultExtent,
		NumSites:     10,
		NumHazards:   400,
		HazardRadius: 20,
		Placement:    PlacementUniform,
		West:         orb.Bound{Min: orb.Point{-970, -970}, Max: orb.Point{-500, 970}},
		East:         orb.Bound{Min: orb.Point{500, -970}, Max: orb.Point{970, 970}},
		WestCohort:   "west",
		EastCohort:   "east",
	}
}

// Validate reports configuration values that would make setup misbehave.
func (c GenConfig) Validate() error {
	if c.NumSites < 0 {
		return fmt.Errorf("num sites must not be negative: %d", c.NumSites)
	}
	if c.NumHazards < 0 {
		return fmt.Errorf("num hazards must not be negative: %d", c.NumHazards)
	}
	if c.Extent < 0 {
		return fmt.Errorf("extent must not be negative: %v", c.Extent)
	}
	switch c.Placement {
	case PlacementUniform, PlacementClustered, "":
	default:
		return fmt.Errorf("unknown hazard placement %q", c.Placement)
	}
	return nil
}

// PlaceSites creates NumSites sites at integer coordinates. Sites [0, n/2)
// are drawn from the West region, the rest from the East region.
func PlaceSites(cfg GenConfig, src entropy.Source) []*Site {
	if cfg.NumSites <= 0 {
		return nil
	}
	sites := make([]*Site, 0, cfg.NumSites)
	half := cfg.NumSites / 2
	for i := 0; i < cfg.NumSites; i++ {
		region, cohort := cfg.East, cfg.EastCohort
		if i < half {
			region, cohort = cfg.West, cfg.WestCohort
		}
		sites = append(sites, NewSite(i, pointIn(region, src), cohort))
	}
	return sites
}

// PlaceHazards creates NumHazards hazards with headings drawn per component
// from [-1, 1).
func PlaceHazards(cfg GenConfig, src entropy.Source) []*Hazard {
	if cfg.NumHazards <= 0 {
		return nil
	}

	extent := orb.Bound{
		Min: orb.Point{-cfg.Extent, -cfg.Extent},
		Max: orb.Point{cfg.Extent, cfg.Extent},
	}

	var accept func(Vec) bool
	if cfg.Placement == PlacementClustered {
		field := opensimplex.NewNormalized(cfg.Seed + 300)
		accept = func(p Vec) bool {
			density := octaveNoise(field, p.X, p.Y, 3, 0.004, 0.5)
			return src.Float64() < density*density
		}
	}

	hazards := make([]*Hazard, 0, cfg.NumHazards)
	for i := 0; i < cfg.NumHazards; i++ {
		pos := pointIn(extent, src)
		if accept != nil {
			// Bounded rejection sampling; fall back to the last draw.
			for try := 0; try < 32 && !accept(pos); try++ {
				pos = pointIn(extent, src)
			}
		}
		heading := V(entropy.Uniform(src, -1, 1), entropy.Uniform(src, -1, 1))
		hazards = append(hazards, NewHazard(pos, heading, cfg.HazardRadius))
	}
	return hazards
}

// pointIn draws an integer point with Min <= p < Max on each axis.
// Degenerate bounds collapse to Min.
func pointIn(b orb.Bound, src entropy.Source) Vec {
	return V(intIn(b.Min.X(), b.Max.X(), src), intIn(b.Min.Y(), b.Max.Y(), src))
}

func intIn(lo, hi float64, src entropy.Source) float64 {
	l, h := int(math.Ceil(lo)), int(math.Ceil(hi))
	if h <= l {
		return float64(l)
	}
	return float64(l + src.Intn(h-l))
}

// octaveNoise sums several noise octaves into a value in [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
