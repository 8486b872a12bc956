package world

// Hazard is a roaming point that slows any agent inside its detection box.
// Its heading is drawn once and never renormalized; it only flips sign.
type Hazard struct {
	Position        Vec     `json:"position"`
	Heading         Vec     `json:"heading"`
	DetectionRadius float64 `json:"detection_radius"`
}

// NewHazard creates a hazard at pos drifting along heading.
func NewHazard(pos, heading Vec, radius float64) *Hazard {
	return &Hazard{
		Position:        pos,
		Heading:         heading,
		DetectionRadius: radius,
	}
}

// Advance moves the hazard one unscaled step along its heading.
func (h *Hazard) Advance() {
	h.Position = h.Position.Add(h.Heading)
}

// Reverse negates the heading in place.
func (h *Hazard) Reverse() {
	h.Heading = h.Heading.Neg()
}

// Detects reports whether pos is inside the hazard's detection box.
func (h *Hazard) Detects(pos Vec) bool {
	return h.Position.WithinBox(pos, h.DetectionRadius)
}
