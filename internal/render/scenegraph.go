// package render draws the galaxy: node glows and labels, weighted edges, nebula auras, a drifting
// starfield and shooting stars.
//
// Drawing goes through the [SceneGraph] capability so the backend (an SVG capture, a terminal
// canvas, ...) is swappable.
package render

import (
	"io"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/galaxy"
)

// BlendMode selects how a container composites onto what is below it.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendAdd
)

func (b BlendMode) String() string {
	if b == BlendAdd {
		return "add"
	}
	return "normal"
}

// Rect is the size of the output surface.
type Rect struct {
	W, H float64
}

// Center returns the middle of the surface.
func (r Rect) Center() r2.Vec { return r2.Vec{X: r.W / 2, Y: r.H / 2} }

// DisplayObject is anything that can be placed in a [Container].
type DisplayObject interface {
	SetPosition(p r2.Vec)
	Position() r2.Vec
	SetScale(x, y float64)
	Scale() (x, y float64)
	SetRotation(rad float64)
	Rotation() float64
	SetAlpha(a float64)
	Alpha() float64
	SetVisible(v bool)
	// Destroy detaches the object from its parent and releases it.
	Destroy()
	Destroyed() bool
}

// Container groups display objects under one transform.
type Container interface {
	DisplayObject
	AddChild(children ...DisplayObject)
	RemoveChild(child DisplayObject)
	Children() []DisplayObject
	SetTint(c galaxy.Color)
	SetBlend(mode BlendMode)
	SetBlur(radius float64)
}

// Sprite draws a texture.
type Sprite interface {
	DisplayObject
	SetTint(c galaxy.Color)
	// SetAnchor sets the texture point (in 0..1 of its size) that sits on the position.
	SetAnchor(x, y float64)
	// SetSize scales the sprite so the texture covers w by h.
	SetSize(w, h float64)
}

// Graphics is an immediate-mode shape list, cleared and redrawn as needed.
type Graphics interface {
	DisplayObject
	Clear()
	Circle(center r2.Vec, radius float64, fill galaxy.Color, alpha float64)
	Line(from, to r2.Vec, width float64, stroke galaxy.Color, alpha float64)
}

// Text is a single line label.
type Text interface {
	DisplayObject
	SetAnchor(x, y float64)
	Content() string
}

// TextStyle describes label typography.
type TextStyle struct {
	Family string
	Size   float64
	Bold   bool
	Fill   galaxy.Color
}

// TextureKind names the procedurally generated textures.
type TextureKind int

const (
	// TextureGlow is a white radial gradient fading to transparent.
	TextureGlow TextureKind = iota
	// TextureDot is a small filled circle.
	TextureDot
	// TextureStreak is a thin rounded rectangle.
	TextureStreak
)

// TextureSpec describes a texture to generate.
type TextureSpec struct {
	Kind   TextureKind
	Width  float64
	Height float64
	// Radius is the circle radius for dots and the corner radius for streaks.
	Radius float64
}

// Texture is a generated bitmap the backend can draw with sprites.
type Texture interface {
	Spec() TextureSpec
}

// SceneGraph creates and parents display objects.
type SceneGraph interface {
	Screen() Rect
	Stage() Container
	NewContainer() Container
	NewSprite(tex Texture) Sprite
	NewGraphics() Graphics
	NewText(text string, style TextStyle) Text
	GenerateTexture(spec TextureSpec) Texture
}

// Capturer is implemented by scene graphs that can encode the current frame as an image.
type Capturer interface {
	Capture(w io.Writer) error
}

var (
	glowTexture   = TextureSpec{Kind: TextureGlow, Width: 100, Height: 100, Radius: 48}
	dotTexture    = TextureSpec{Kind: TextureDot, Width: 2.4, Height: 2.4, Radius: 1.2}
	streakTexture = TextureSpec{Kind: TextureStreak, Width: 80, Height: 3, Radius: 1.5}
)
