package render

import (
	"math"
	"math/rand/v2"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/galaxy"
)

const (
	starHueStart   = 210.0
	starHueStep    = 0.02
	starSaturation = 0.08
	starLightness  = 0.95
	starWrapMargin = 2.0
)

// Star is one background dot. Layer in [0,1) fixes its depth: speed, scale and twinkle rate.
type Star struct {
	Sprite  Sprite
	Pos     r2.Vec
	VX, VY  float64
	Layer   float64
	Twinkle float64
}

// Starfield is the drifting, twinkling background. The whole layer is tinted by a slowly rotating
// hue.
type Starfield struct {
	Container Container
	Stars     []*Star
	hue       float64
}

// NewStarfield scatters count stars over screen and adds them to a new container.
func NewStarfield(scene SceneGraph, count int, rng *rand.Rand) *Starfield {
	screen := scene.Screen()
	tex := scene.GenerateTexture(dotTexture)
	sf := &Starfield{Container: scene.NewContainer(), hue: starHueStart}

	for range count {
		layer := rng.Float64()
		depth := layer*0.6 + 0.4
		s := &Star{
			Pos:     r2.Vec{X: rng.Float64() * screen.W, Y: rng.Float64() * screen.H},
			Layer:   layer,
			VX:      (0.2 + rng.Float64()*0.6) * depth,
			VY:      (0.15 + rng.Float64()*0.5) * depth,
			Twinkle: rng.Float64() * 2 * math.Pi,
			Sprite:  scene.NewSprite(tex),
		}
		scale := 0.6 + 1.4*layer
		s.Sprite.SetScale(scale, scale)
		s.Sprite.SetAlpha(0.3 + rng.Float64()*0.7)
		s.Sprite.SetAnchor(0.5, 0.5)
		s.Sprite.SetPosition(s.Pos)
		sf.Container.AddChild(s.Sprite)
		sf.Stars = append(sf.Stars, s)
	}

	sf.Container.SetTint(sf.Tint())
	return sf
}

// Update drifts every star by delta (in 60 Hz frames), wraps it around screen, advances its twinkle
// and rotates the layer hue.
func (sf *Starfield) Update(delta float64, screen Rect) {
	for _, s := range sf.Stars {
		s.Pos.X -= s.VX * delta * 0.5
		s.Pos.Y += s.VY * delta * 0.2
		if s.Pos.X < -starWrapMargin {
			s.Pos.X = screen.W + starWrapMargin
		}
		if s.Pos.Y > screen.H+starWrapMargin {
			s.Pos.Y = -starWrapMargin
		}
		s.Twinkle += 0.01 + 0.02*s.Layer

		s.Sprite.SetPosition(s.Pos)
		s.Sprite.SetAlpha(0.5 + 0.4*math.Sin(s.Twinkle))
	}

	sf.hue = math.Mod(sf.hue+starHueStep, 360)
	sf.Container.SetTint(sf.Tint())
}

// Hue returns the current layer hue in degrees.
func (sf *Starfield) Hue() float64 { return sf.hue }

// Tint returns the layer color for the current hue.
func (sf *Starfield) Tint() galaxy.Color {
	return HSL(sf.hue, starSaturation, starLightness)
}

// HSL converts hue (degrees), saturation and lightness (0..1) to a [galaxy.Color].
func HSL(h, s, l float64) galaxy.Color {
	r, g, b := colorful.Hsl(h, s, l).Clamped().RGB255()
	return galaxy.Color(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}
