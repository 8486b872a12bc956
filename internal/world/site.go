package world

import "fmt"

// Site is a fixed delivery point. Deliveries only ever grows, and only the
// simulation's detection step calls RecordDelivery.
type Site struct {
	Index      int    `json:"index"`
	Position   Vec    `json:"position"`
	Label      string `json:"label"`
	Cohort     string `json:"cohort"`
	Deliveries int    `json:"deliveries"`
}

// NewSite creates a site with zero deliveries.
func NewSite(index int, pos Vec, cohort string) *Site {
	return &Site{
		Index:    index,
		Position: pos,
		Label:    fmt.Sprintf("Site: %d", index),
		Cohort:   cohort,
	}
}

// RecordDelivery counts one completed drop-off.
func (s *Site) RecordDelivery() {
	s.Deliveries++
}

// Caption is the two-line text a renderer shows next to the site marker.
func (s *Site) Caption() string {
	return fmt.Sprintf("%s\nDeliveries: %d", s.Label, s.Deliveries)
}
