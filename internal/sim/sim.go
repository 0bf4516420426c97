// package sim positions galaxy nodes with a cooling force simulation.
//
// The [Engine] follows the usual velocity-Verlet style used by d3-force: every tick the alpha
// temperature moves toward its target, each force adds to node velocities scaled by alpha, velocities
// are damped and positions integrated. Dragged nodes are pinned and hold alpha above zero so the rest
// of the graph keeps relaxing around them.
package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/galaxy"
	"github.com/desertthunder/cosmic/internal/shared"
)

// ForceSimulation is the physics capability the visualization depends on.
type ForceSimulation interface {
	// SetNodes replaces the simulated node set. Positions already on the nodes are kept.
	SetNodes(nodes []*galaxy.Node)
	// SetEdges resolves edges against the current nodes. Edges to unknown ids are dropped.
	SetEdges(edges []galaxy.Edge) int
	// Tick advances one step and notifies subscribers. It reports false when the simulation is cold.
	Tick() bool
	Alpha() float64
	SetAlpha(alpha float64)
	SetAlphaTarget(target float64)
	Restart()
	// Drag pins id at pos and keeps the simulation warm.
	Drag(id string, pos r2.Vec) bool
	// Release clears the pin on id and lets alpha decay.
	Release(id string)
	// OnTick subscribes fn to tick events and returns the unsubscribe func.
	OnTick(fn func()) func()
}

// Config holds the force constants.
type Config struct {
	Center r2.Vec

	LinkDistance float64
	// LinkStrength multiplies each edge weight.
	LinkStrength float64

	Charge            float64
	ChargeDistanceMin float64
	ChargeDistanceMax float64
	Theta             float64

	AxisStrength float64
	// CenterShift translates the node mean onto Center each tick.
	CenterShift bool

	AlphaMin        float64
	AlphaDecay      float64
	VelocityDecay   float64
	DragAlphaTarget float64
}

// DefaultAlphaDecay cools from 1 to AlphaMin in roughly 300 ticks.
var DefaultAlphaDecay = 1 - math.Pow(0.001, 1.0/300)

// DefaultConfig returns the tuned constants centered on center.
func DefaultConfig(center r2.Vec) Config {
	return Config{
		Center:            center,
		LinkDistance:      150,
		LinkStrength:      0.8,
		Charge:            -1500,
		ChargeDistanceMin: 1,
		ChargeDistanceMax: 800,
		Theta:             0.9,
		AxisStrength:      0.05,
		CenterShift:       true,
		AlphaMin:          0.001,
		AlphaDecay:        DefaultAlphaDecay,
		VelocityDecay:     0.4,
		DragAlphaTarget:   0.1,
	}
}

// ConfigFrom builds a Config from the galaxy section of the application config. Zero values keep
// the defaults.
func ConfigFrom(g shared.GalaxyConfig, center r2.Vec) Config {
	c := DefaultConfig(center)
	set := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	set(&c.LinkDistance, g.LinkDistance)
	set(&c.LinkStrength, g.LinkStrength)
	set(&c.Charge, g.Charge)
	set(&c.ChargeDistanceMax, g.ChargeDistanceMax)
	set(&c.Theta, g.Theta)
	set(&c.AxisStrength, g.AxisStrength)
	set(&c.AlphaMin, g.AlphaMin)
	set(&c.AlphaDecay, g.AlphaDecay)
	set(&c.VelocityDecay, g.VelocityDecay)
	set(&c.DragAlphaTarget, g.DragAlphaTarget)
	return c
}
