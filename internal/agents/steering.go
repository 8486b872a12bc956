package agents

import (
	"math"

	"github.com/talgya/swarmdrop/internal/entropy"
	"github.com/talgya/swarmdrop/internal/world"
)

// JitterSpan bounds each component of the random steering vector.
const JitterSpan = 100

// SlowSpeed is the speed cap applied while inside any hazard's box.
const SlowSpeed = 1.0

// Steer recomputes the agent's heading and speed from its destination, the
// hazards around it, and the neighbors it can hear. It writes only the
// agent's own Heading, Speed and Slowed fields.
//
// The swarm is scanned in order and the scan stops once MaxCommLinks agents
// inside CommRange have been counted, so the first neighbors found win; there
// is no distance ranking. The agent itself is never counted.
func (a *Agent) Steer(swarm []*Agent, hazards []*world.Hazard, src entropy.Source) {
	destination := a.Destination().Sub(a.Position)

	a.Speed = a.MaxSpeed
	a.Slowed = false
	for _, h := range hazards {
		if h.Detects(a.Position) {
			a.Speed = math.Min(a.MaxSpeed, SlowSpeed)
			a.Slowed = a.MaxSpeed > SlowSpeed
			break
		}
	}

	var attraction, alignment world.Vec
	inRange := 0
	for _, other := range swarm {
		if inRange >= a.MaxCommLinks {
			break
		}
		// Self never takes a comm link, unlike a plain scan of the whole
		// swarm, which would count the agent against its own cap.
		if other == nil || other.ID == a.ID {
			continue
		}
		if !a.Position.WithinBox(other.Position, a.CommRange) {
			continue
		}
		inRange++
		// Only launched neighbors that are being held below cruise speed
		// contribute.
		if other.Launched && other.Speed < other.MaxSpeed {
			attraction = attraction.Add(a.Position.Sub(other.Position))
			alignment = alignment.Add(other.Heading)
		}
	}

	jitter := world.V(
		float64(entropy.IntRange(src, -JitterSpan, JitterSpan)),
		float64(entropy.IntRange(src, -JitterSpan, JitterSpan)),
	)

	w := a.Weights
	blend := destination.Unit().Scale(w.Destination).
		Add(attraction.Unit().Scale(w.Attraction)).
		Add(alignment.Unit().Scale(w.Alignment)).
		Add(jitter.Unit().Scale(w.Random))

	if blend.IsZero() {
		// Degenerate blend: hold the previous heading.
		a.Heading = a.Heading.Unit()
		return
	}
	a.Heading = blend.Unit()
}

// Advance integrates position by heading times speed. There is no world
// boundary; agents may drift off the visible area.
func (a *Agent) Advance() {
	a.Position = a.Position.Add(a.Heading.Scale(a.Speed))
}
