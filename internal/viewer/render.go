package viewer

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/talgya/swarmdrop/internal/engine"
	"github.com/talgya/swarmdrop/internal/world"
)

// Marker runes.
const (
	AgentRune  = '●'
	HazardRune = '░'
	SiteRune   = '▲'
	BaseRune   = '■'
)

// Styles for each kind of marker. Agents are green at cruise speed and red
// while slowed by a hazard.
var (
	StyleAgent   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	StyleSlowed  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	StyleHazard  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	StyleSite    = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	StyleBase    = tcell.StyleDefault.Foreground(tcell.ColorBlue).Bold(true)
	StyleCaption = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	StyleStatus  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
)

// Renderer maps the square world [-Extent, Extent]² onto a terminal screen.
// The last row holds the status line; world y grows upward.
type Renderer struct {
	Screen tcell.Screen
	Extent float64
}

// NewRenderer creates a renderer for a world of the given half-extent.
func NewRenderer(screen tcell.Screen, extent float64) *Renderer {
	if extent <= 0 {
		extent = world.DefaultExtent
	}
	return &Renderer{Screen: screen, Extent: extent}
}

// Cell returns the screen cell of a world position, and false if it falls
// outside the drawable area.
func (r *Renderer) Cell(p world.Vec) (int, int, bool) {
	w, h := r.Screen.Size()
	h-- // status line
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	span := 2 * r.Extent
	fx := (p.X + r.Extent) / span
	fy := (r.Extent - p.Y) / span
	if fx < 0 || fx > 1 || fy < 0 || fy > 1 {
		return 0, 0, false
	}
	x := min(int(fx*float64(w)), w-1)
	y := min(int(fy*float64(h)), h-1)
	return x, y, true
}

// Draw renders one frame and shows it. Hazards go underneath, agents on top.
func (r *Renderer) Draw(snap *engine.Snapshot) {
	r.Screen.Clear()

	for _, hz := range snap.Hazards {
		r.put(hz.Position, HazardRune, StyleHazard)
	}
	for _, site := range snap.Sites {
		if x, y, ok := r.Cell(site.Position); ok {
			r.Screen.SetContent(x, y, SiteRune, nil, StyleSite)
			r.text(x+2, y, fmt.Sprintf("%d:%d", site.Index, site.Deliveries), StyleCaption)
		}
	}
	r.put(snap.Base, BaseRune, StyleBase)
	for _, a := range snap.Agents {
		style := StyleAgent
		if a.Slowed {
			style = StyleSlowed
		}
		r.put(a.Position, AgentRune, style)
	}

	r.statusLine(snap)
	r.Screen.Show()
}

// StatusText is the text of the bottom line.
func StatusText(snap *engine.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, " tick %d", snap.Tick)
	for _, ct := range snap.Totals {
		fmt.Fprintf(&b, " | %s %d", ct.Cohort, ct.Deliveries)
	}
	fmt.Fprintf(&b, " | slowed %d | [q]uit", snap.Stats.Slowed)
	return b.String()
}

func (r *Renderer) statusLine(snap *engine.Snapshot) {
	w, h := r.Screen.Size()
	if h <= 0 {
		return
	}
	for x := 0; x < w; x++ {
		r.Screen.SetContent(x, h-1, ' ', nil, StyleStatus)
	}
	r.text(0, h-1, StatusText(snap), StyleStatus)
}

func (r *Renderer) put(p world.Vec, ch rune, style tcell.Style) {
	if x, y, ok := r.Cell(p); ok {
		r.Screen.SetContent(x, y, ch, nil, style)
	}
}

func (r *Renderer) text(x, y int, s string, style tcell.Style) {
	w, _ := r.Screen.Size()
	for _, ch := range s {
		if x >= w {
			return
		}
		r.Screen.SetContent(x, y, ch, nil, style)
		x++
	}
}
