package scene

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/galaxy"
	"github.com/desertthunder/cosmic/internal/render"
)

// Kind is the type of a flattened [Primitive].
type Kind int

const (
	KindCircle Kind = iota
	KindLine
	KindSprite
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindCircle:
		return "circle"
	case KindLine:
		return "line"
	case KindSprite:
		return "sprite"
	case KindText:
		return "text"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Primitive is one drawable in screen space with inherited alpha, tint, blend and blur resolved.
type Primitive struct {
	Kind Kind

	// Center is the circle, sprite or text position.
	Center   r2.Vec
	From, To r2.Vec
	Radius   float64
	// Width is the stroke width of lines and the on-screen width of sprites.
	Width    float64
	Height   float64
	Rotation float64

	Color galaxy.Color
	Alpha float64
	Blend render.BlendMode
	Blur  float64

	Texture render.TextureSpec
	// TextureID names the generated texture; backends use it as a definition id.
	TextureID string

	Text     string
	FontSize float64
	Bold     bool
	Family   string
	// AnchorX is the horizontal text anchor: 0 start, 0.5 middle, 1 end.
	AnchorX float64
}

// Stage is the root of a retained scene. It implements [render.SceneGraph] and [render.Capturer].
type Stage struct {
	screen   render.Rect
	root     *container
	textures []*texture
}

// New creates a stage for a w by h surface.
func New(w, h float64) *Stage {
	return &Stage{screen: render.Rect{W: w, H: h}, root: newContainer()}
}

// Resize changes the surface size. Existing objects keep their coordinates.
func (s *Stage) Resize(w, h float64) { s.screen = render.Rect{W: w, H: h} }

func (s *Stage) Screen() render.Rect { return s.screen }

func (s *Stage) Stage() render.Container { return s.root }

func (s *Stage) NewContainer() render.Container { return newContainer() }

func (s *Stage) NewSprite(tex render.Texture) render.Sprite {
	t, ok := tex.(*texture)
	if !ok {
		t = s.GenerateTexture(tex.Spec()).(*texture)
	}
	sp := &sprite{object: newObject(), tex: t, tint: galaxy.DefaultColor}
	sp.self = sp
	return sp
}

func (s *Stage) NewGraphics() render.Graphics {
	g := &graphics{object: newObject()}
	g.self = g
	return g
}

func (s *Stage) NewText(content string, style render.TextStyle) render.Text {
	t := &text{object: newObject(), content: content, style: style}
	t.self = t
	return t
}

// GenerateTexture registers spec. Identical specs share one texture.
func (s *Stage) GenerateTexture(spec render.TextureSpec) render.Texture {
	for _, t := range s.textures {
		if t.spec == spec {
			return t
		}
	}
	t := &texture{id: fmt.Sprintf("tex%d", len(s.textures)), spec: spec}
	s.textures = append(s.textures, t)
	return t
}

// Textures returns the generated textures in creation order.
func (s *Stage) Textures() []render.Texture {
	out := make([]render.Texture, len(s.textures))
	for i, t := range s.textures {
		out[i] = t
	}
	return out
}

// Len counts the live display objects below the root.
func (s *Stage) Len() int {
	var count func(c *container) int
	count = func(c *container) int {
		n := len(c.children)
		for _, ch := range c.children {
			if cc, ok := ch.(*container); ok {
				n += count(cc)
			}
		}
		return n
	}
	return count(s.root)
}

// state is what a container passes down to its children.
type state struct {
	m     affine
	alpha float64
	tint  galaxy.Color
	blend render.BlendMode
	blur  float64
}

// Walk calls fn for every visible primitive in paint order (back to front).
func (s *Stage) Walk(fn func(Primitive)) {
	s.walk(s.root, state{m: identity, alpha: 1, tint: galaxy.DefaultColor}, fn)
}

func (s *Stage) walk(n node, st state, fn func(Primitive)) {
	o := n.base()
	if o.hidden || o.destroyed {
		return
	}
	st.m = st.m.mul(o.local())
	st.alpha *= o.alpha
	if st.alpha <= 0 {
		return
	}

	switch v := n.(type) {
	case *container:
		st.tint = multiply(st.tint, v.tint)
		if v.blend != render.BlendNormal {
			st.blend = v.blend
		}
		st.blur += v.blur * st.m.uniform()
		for _, ch := range v.children {
			s.walk(ch, st, fn)
		}
	case *sprite:
		spec := v.tex.spec
		local := r2.Vec{X: (0.5 - v.ax) * spec.Width, Y: (0.5 - v.ay) * spec.Height}
		fn(Primitive{
			Kind:      KindSprite,
			Center:    st.m.apply(local),
			Width:     spec.Width * st.m.scaleX(),
			Height:    spec.Height * st.m.scaleY(),
			Radius:    spec.Radius * st.m.uniform(),
			Rotation:  st.m.rotation(),
			Color:     multiply(st.tint, v.tint),
			Alpha:     st.alpha,
			Blend:     st.blend,
			Blur:      st.blur,
			Texture:   spec,
			TextureID: v.tex.id,
		})
	case *graphics:
		k := st.m.uniform()
		for _, sh := range v.shapes {
			p := Primitive{
				Kind:  sh.kind,
				Color: multiply(st.tint, sh.color),
				Alpha: st.alpha * sh.alpha,
				Blend: st.blend,
				Blur:  st.blur,
			}
			switch sh.kind {
			case KindCircle:
				p.Center = st.m.apply(sh.from)
				p.Radius = sh.radius * k
			case KindLine:
				p.From = st.m.apply(sh.from)
				p.To = st.m.apply(sh.to)
				p.Width = sh.width * k
			}
			fn(p)
		}
	case *text:
		size := v.style.Size * st.m.scaleY()
		// The anchor offsets the box by its own height; the baseline sits 0.8 of the size below the top.
		local := r2.Vec{Y: (0.8 - v.ay) * v.style.Size}
		fn(Primitive{
			Kind:     KindText,
			Center:   st.m.apply(local),
			Rotation: st.m.rotation(),
			Color:    multiply(st.tint, v.style.Fill),
			Alpha:    st.alpha,
			Blend:    st.blend,
			Blur:     st.blur,
			Text:     v.content,
			FontSize: size,
			Bold:     v.style.Bold,
			Family:   v.style.Family,
			AnchorX:  v.ax,
		})
	}
}

// multiply combines two tints channel by channel.
func multiply(a, b galaxy.Color) galaxy.Color {
	ar, ag, ab := a.RGB()
	br, bg, bb := b.RGB()
	mix := func(x, y uint8) uint32 { return uint32(x) * uint32(y) / 255 }
	return galaxy.Color(mix(ar, br)<<16 | mix(ag, bg)<<8 | mix(ab, bb))
}

var (
	_ render.SceneGraph = (*Stage)(nil)
	_ render.Capturer   = (*Stage)(nil)
	_ render.Container  = (*container)(nil)
	_ render.Sprite     = (*sprite)(nil)
	_ render.Graphics   = (*graphics)(nil)
	_ render.Text       = (*text)(nil)
)
