// package scene is a retained, in-memory [render.SceneGraph].
//
// Display objects only record state. [Stage.Walk] flattens the tree into screen-space primitives,
// which backends consume: [Stage.Capture] encodes them as SVG and the terminal viewer rasterizes
// them into cells.
package scene

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/galaxy"
	"github.com/desertthunder/cosmic/internal/render"
)

// affine is the 2x3 matrix [a c e; b d f].
type affine struct {
	a, b, c, d, e, f float64
}

var identity = affine{a: 1, d: 1}

func (m affine) mul(n affine) affine {
	return affine{
		a: m.a*n.a + m.c*n.b,
		b: m.b*n.a + m.d*n.b,
		c: m.a*n.c + m.c*n.d,
		d: m.b*n.c + m.d*n.d,
		e: m.a*n.e + m.c*n.f + m.e,
		f: m.b*n.e + m.d*n.f + m.f,
	}
}

func (m affine) apply(p r2.Vec) r2.Vec {
	return r2.Vec{X: m.a*p.X + m.c*p.Y + m.e, Y: m.b*p.X + m.d*p.Y + m.f}
}

func (m affine) scaleX() float64 { return math.Hypot(m.a, m.b) }
func (m affine) scaleY() float64 { return math.Hypot(m.c, m.d) }

// uniform is the mean linear scale, used for radii and stroke widths.
func (m affine) uniform() float64 { return math.Sqrt(math.Abs(m.a*m.d - m.b*m.c)) }

func (m affine) rotation() float64 { return math.Atan2(m.b, m.a) }

// object is the state shared by every display object.
type object struct {
	self   render.DisplayObject
	parent *container

	pos       r2.Vec
	sx, sy    float64
	rot       float64
	alpha     float64
	hidden    bool
	destroyed bool
}

func newObject() object { return object{sx: 1, sy: 1, alpha: 1} }

func (o *object) SetPosition(p r2.Vec) { o.pos = p }
func (o *object) Position() r2.Vec { return o.pos }
func (o *object) SetScale(x, y float64) { o.sx, o.sy = x, y }
func (o *object) Scale() (float64, float64) { return o.sx, o.sy }
func (o *object) SetRotation(rad float64) { o.rot = rad }
func (o *object) Rotation() float64 { return o.rot }
func (o *object) SetAlpha(a float64) { o.alpha = a }
func (o *object) Alpha() float64 { return o.alpha }
func (o *object) SetVisible(v bool) { o.hidden = !v }
func (o *object) Destroyed() bool { return o.destroyed }

func (o *object) Destroy() {
	if o.destroyed {
		return
	}
	o.destroyed = true
	if o.parent != nil {
		o.parent.RemoveChild(o.self)
	}
}

func (o *object) local() affine {
	sin, cos := math.Sincos(o.rot)
	return affine{
		a: cos * o.sx, b: sin * o.sx,
		c: -sin * o.sy, d: cos * o.sy,
		e: o.pos.X, f: o.pos.Y,
	}
}

func (o *object) base() *object { return o }

type node interface {
	render.DisplayObject
	base() *object
}

type container struct {
	object
	children []node
	tint     galaxy.Color
	blend    render.BlendMode
	blur     float64
}

func newContainer() *container {
	c := &container{object: newObject(), tint: galaxy.DefaultColor}
	c.self = c
	return c
}

func (c *container) AddChild(children ...render.DisplayObject) {
	for _, ch := range children {
		n, ok := ch.(node)
		if !ok || n.Destroyed() {
			continue
		}
		if p := n.base().parent; p != nil {
			p.RemoveChild(n)
		}
		n.base().parent = c
		c.children = append(c.children, n)
	}
}

func (c *container) RemoveChild(child render.DisplayObject) {
	i := slices.IndexFunc(c.children, func(n node) bool { return render.DisplayObject(n) == child })
	if i < 0 {
		return
	}
	c.children[i].base().parent = nil
	c.children = slices.Delete(c.children, i, i+1)
}

func (c *container) Children() []render.DisplayObject {
	out := make([]render.DisplayObject, len(c.children))
	for i, n := range c.children {
		out[i] = n
	}
	return out
}

func (c *container) SetTint(t galaxy.Color) { c.tint = t }
func (c *container) SetBlend(mode render.BlendMode) { c.blend = mode }
func (c *container) SetBlur(radius float64) { c.blur = radius }

// Destroy releases the container and every descendant.
func (c *container) Destroy() {
	if c.destroyed {
		return
	}
	for _, ch := range slices.Clone(c.children) {
		ch.Destroy()
	}
	c.object.Destroy()
}

type sprite struct {
	object
	tex    *texture
	tint   galaxy.Color
	ax, ay float64
}

func (s *sprite) SetTint(t galaxy.Color) { s.tint = t }
func (s *sprite) SetAnchor(x, y float64) { s.ax, s.ay = x, y }

func (s *sprite) SetSize(w, h float64) {
	spec := s.tex.spec
	if spec.Width > 0 {
		s.sx = w / spec.Width
	}
	if spec.Height > 0 {
		s.sy = h / spec.Height
	}
}

type shape struct {
	kind     Kind
	from, to r2.Vec
	radius   float64
	width    float64
	color    galaxy.Color
	alpha    float64
}

type graphics struct {
	object
	shapes []shape
}

func (g *graphics) Clear() { g.shapes = g.shapes[:0] }

func (g *graphics) Circle(center r2.Vec, radius float64, fill galaxy.Color, alpha float64) {
	g.shapes = append(g.shapes, shape{kind: KindCircle, from: center, radius: radius, color: fill, alpha: alpha})
}

func (g *graphics) Line(from, to r2.Vec, width float64, stroke galaxy.Color, alpha float64) {
	g.shapes = append(g.shapes, shape{kind: KindLine, from: from, to: to, width: width, color: stroke, alpha: alpha})
}

type text struct {
	object
	content string
	style   render.TextStyle
	ax, ay  float64
}

func (t *text) SetAnchor(x, y float64) { t.ax, t.ay = x, y }
func (t *text) Content() string { return t.content }

type texture struct {
	id   string
	spec render.TextureSpec
}

func (t *texture) Spec() render.TextureSpec { return t.spec }
