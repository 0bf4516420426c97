// package camera implements the pan and zoom transform applied to the galaxy at render time.
//
// A world point w maps to the screen as (w - Pivot)*Zoom + Position. The camera never touches
// simulation coordinates.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Limits bounds and steps the zoom.
type Limits struct {
	Min    float64
	Max    float64
	Factor float64
}

// DefaultLimits allows zooming between 0.2x and 3x in steps of 1.1.
var DefaultLimits = Limits{Min: 0.2, Max: 3.0, Factor: 1.1}

// Transform is a uniform scale followed by a translation: screen = local*Scale + Offset.
type Transform struct {
	Scale  float64
	Offset r2.Vec
}

// Apply maps p through the transform.
func (t Transform) Apply(p r2.Vec) r2.Vec {
	return r2.Add(r2.Scale(t.Scale, p), t.Offset)
}

// Identity is the no-op transform.
var Identity = Transform{Scale: 1}

// Camera holds the pan and zoom state.
type Camera struct {
	Zoom     float64
	Pivot    r2.Vec
	Position r2.Vec

	limits   Limits
	panning  bool
	panStart r2.Vec
}

// New creates a camera with pivot and position at the center of a w by h screen.
func New(w, h float64, limits Limits) *Camera {
	if limits.Factor <= 1 {
		limits.Factor = DefaultLimits.Factor
	}
	if limits.Min <= 0 || limits.Max < limits.Min {
		limits.Min, limits.Max = DefaultLimits.Min, DefaultLimits.Max
	}
	center := r2.Vec{X: w / 2, Y: h / 2}
	return &Camera{Zoom: 1, Pivot: center, Position: center, limits: limits}
}

// Limits returns the zoom limits.
func (c *Camera) Limits() Limits { return c.limits }

// ToScreen maps a world point to screen space.
func (c *Camera) ToScreen(w r2.Vec) r2.Vec {
	return r2.Add(r2.Scale(c.Zoom, r2.Sub(w, c.Pivot)), c.Position)
}

// ToWorld maps a screen point to world space.
func (c *Camera) ToWorld(s r2.Vec) r2.Vec {
	return r2.Add(r2.Scale(1/c.Zoom, r2.Sub(s, c.Position)), c.Pivot)
}

// Transform returns the world to screen mapping as a [Transform].
func (c *Camera) Transform() Transform {
	return Transform{Scale: c.Zoom, Offset: r2.Sub(c.Position, r2.Scale(c.Zoom, c.Pivot))}
}

// Wheel zooms one step in (deltaY < 0) or out (deltaY > 0) keeping the world point under p fixed
// on screen. It returns the new zoom.
func (c *Camera) Wheel(p r2.Vec, deltaY float64) float64 {
	if deltaY == 0 {
		return c.Zoom
	}
	factor := c.limits.Factor
	if deltaY > 0 {
		factor = 1 / factor
	}
	return c.ZoomAt(p, c.Zoom*factor)
}

// ZoomAt sets the zoom (clamped) anchored at screen point p.
func (c *Camera) ZoomAt(p r2.Vec, zoom float64) float64 {
	anchor := c.ToWorld(p)
	c.Zoom = math.Max(c.limits.Min, math.Min(c.limits.Max, zoom))
	c.Pivot = anchor
	c.Position = p
	return c.Zoom
}

// BeginPan starts a pan at screen point p. It reports false if a pan is already active.
func (c *Camera) BeginPan(p r2.Vec) bool {
	if c.panning {
		return false
	}
	c.panning = true
	c.panStart = r2.Sub(p, c.Position)
	return true
}

// MovePan moves the camera so the pan start stays under p. It is a no-op without an active pan.
func (c *Camera) MovePan(p r2.Vec) {
	if !c.panning {
		return
	}
	c.Position = r2.Sub(p, c.panStart)
}

// EndPan ends the active pan, if any.
func (c *Camera) EndPan() { c.panning = false }

// Panning reports whether a pan is active.
func (c *Camera) Panning() bool { return c.panning }

// Nudge moves the camera by d screen units.
func (c *Camera) Nudge(d r2.Vec) {
	c.Position = r2.Add(c.Position, d)
}

// Parallax returns the transform of a background layer that follows the camera by factor on a w
// by h screen: its scale is 1+(Zoom-1)*factor and it is offset by -Position*factor, recentred.
func (c *Camera) Parallax(factor, w, h float64) Transform {
	scale := 1 + (c.Zoom-1)*factor
	return Transform{
		Scale: scale,
		Offset: r2.Vec{
			X: -c.Position.X*factor + w*(1-scale)/2,
			Y: -c.Position.Y*factor + h*(1-scale)/2,
		},
	}
}
