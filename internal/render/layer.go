package render

import (
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/camera"
	"github.com/desertthunder/cosmic/internal/galaxy"
)

const (
	glowScale    = 6.0
	glowAlpha    = 0.3
	coreScale    = 0.5
	spinRate     = 0.005
	nebulaBlur   = 30.0
	labelSize    = 10.0
	labelAnchorY = -1.5
	// hitPadding widens node hit areas so small nodes stay draggable.
	hitPadding = 4.0
)

// Options configures a [Layer].
type Options struct {
	StarCount        int
	ShootingCooldown float64
	ShootingChance   float64
	StarParallax     float64
	ShooterParallax  float64
	Rand             *rand.Rand
}

// DefaultOptions mirrors the tuned look: 600 stars, a shooting star roll of 0.8% per frame after
// 1.5 s, and parallax of 0.2 and 0.35.
func DefaultOptions() Options {
	return Options{
		StarCount:        600,
		ShootingCooldown: 1.5,
		ShootingChance:   0.008,
		StarParallax:     0.2,
		ShooterParallax:  0.35,
	}
}

// nodeView holds the display objects of one graph node.
type nodeView struct {
	node  *galaxy.Node
	body  Container
	core  Graphics
	label Text
	glow  Sprite
}

func (v *nodeView) destroy() {
	v.glow.Destroy()
	v.body.Destroy()
}

// Layer owns every display object of the visualization. Background effects advance in [Layer.Frame];
// the graph is redrawn from simulation positions in [Layer.Draw].
type Layer struct {
	scene SceneGraph
	opts  Options

	Stars    *Starfield
	Shooters *ShootingStars

	world   Container
	nebulas Graphics
	links   Graphics
	glows   Container
	bodies  Container

	glowTex Texture
	graph   *galaxy.Graph
	views   map[string]*nodeView
	maxPop  int

	elapsed  float64
	disposed bool
}

// NewLayer builds the scene: starfield and shooting stars at the back, then the camera-space world
// holding nebulas, links, glows and node bodies.
func NewLayer(scene SceneGraph, opts Options) *Layer {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	l := &Layer{
		scene:   scene,
		opts:    opts,
		views:   make(map[string]*nodeView),
		glowTex: scene.GenerateTexture(glowTexture),
		maxPop:  100,
	}

	l.Stars = NewStarfield(scene, opts.StarCount, opts.Rand)
	l.Shooters = NewShootingStars(scene, opts.ShootingCooldown, opts.ShootingChance, opts.Rand)

	l.world = scene.NewContainer()
	l.nebulas = scene.NewGraphics()
	l.links = scene.NewGraphics()
	l.glows = scene.NewContainer()
	l.bodies = scene.NewContainer()

	nebulaLayer := scene.NewContainer()
	nebulaLayer.SetBlend(BlendAdd)
	nebulaLayer.SetBlur(nebulaBlur)
	nebulaLayer.AddChild(l.nebulas)

	l.world.AddChild(nebulaLayer, l.links, l.glows, l.bodies)
	scene.Stage().AddChild(l.Stars.Container, l.Shooters.Container, l.world)
	return l
}

// Elapsed returns the animation clock in seconds.
func (l *Layer) Elapsed() float64 { return l.elapsed }

// Graph returns the graph currently displayed.
func (l *Layer) Graph() *galaxy.Graph { return l.graph }

// Views returns the number of node display objects alive.
func (l *Layer) Views() int { return len(l.views) }

// SetGraph switches to g, creating display objects for new ids, destroying those of ids that left,
// and rebinding the survivors.
func (l *Layer) SetGraph(g *galaxy.Graph) {
	if l.disposed {
		return
	}
	l.graph = g
	l.maxPop = g.MaxPopularity()

	keep := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		keep[n.ID()] = struct{}{}
		if v, ok := l.views[n.ID()]; ok {
			v.node = n
			l.style(v)
			continue
		}
		l.views[n.ID()] = l.newView(n)
	}

	for id, v := range l.views {
		if _, ok := keep[id]; !ok {
			v.destroy()
			delete(l.views, id)
		}
	}
}

func (l *Layer) newView(n *galaxy.Node) *nodeView {
	v := &nodeView{
		node:  n,
		body:  l.scene.NewContainer(),
		core:  l.scene.NewGraphics(),
		glow:  l.scene.NewSprite(l.glowTex),
		label: l.scene.NewText(strings.ToUpper(n.Artist.Name), TextStyle{Family: "Space Grotesk", Size: labelSize, Bold: true, Fill: galaxy.DefaultColor}),
	}
	v.glow.SetAnchor(0.5, 0.5)
	v.glow.SetAlpha(glowAlpha)
	v.label.SetAnchor(0.5, labelAnchorY)
	v.body.AddChild(v.core, v.label)
	l.style(v)

	l.glows.AddChild(v.glow)
	l.bodies.AddChild(v.body)
	return v
}

// style sizes and tints a view from its node's popularity and color.
func (l *Layer) style(v *nodeView) {
	r := v.node.Radius(l.maxPop)
	v.glow.SetTint(v.node.Color)
	v.glow.SetSize(r*glowScale, r*glowScale)
	v.core.Clear()
	v.core.Circle(r2.Vec{}, r*coreScale, v.node.Color, 1)
}

// Frame advances the background by dt seconds and aligns every layer with the camera.
func (l *Layer) Frame(dt float64, cam *camera.Camera) {
	if l.disposed {
		return
	}
	l.elapsed += dt
	screen := l.scene.Screen()

	l.Stars.Update(dt*60, screen)
	l.Shooters.Update(dt, screen)

	applyTransform(l.Stars.Container, cam.Parallax(l.opts.StarParallax, screen.W, screen.H))
	applyTransform(l.Shooters.Container, cam.Parallax(l.opts.ShooterParallax, screen.W, screen.H))
	applyTransform(l.world, cam.Transform())
}

// Draw redraws nebulas, links and node positions from the current simulation state.
func (l *Layer) Draw() {
	if l.disposed || l.graph == nil {
		return
	}
	t := l.elapsed

	l.nebulas.Clear()
	pulse := NebulaPulse(t)
	for _, n := range l.graph.Nodes {
		d := l.graph.Degree(n.ID())
		if d <= 0 {
			continue
		}
		l.nebulas.Circle(n.Pos, NebulaRadius(n, d, t, pulse), galaxy.NebulaColor, NebulaAlpha(d))
	}

	l.links.Clear()
	for _, e := range l.graph.Edges {
		src, ok := l.views[e.Source]
		if !ok {
			continue
		}
		dst, ok := l.views[e.Target]
		if !ok {
			continue
		}
		l.links.Line(src.node.Display(t), dst.node.Display(t), EdgeWidth(e.Weight), galaxy.EdgeColor, EdgeAlpha(e.Weight))
	}

	for _, v := range l.views {
		pos := v.node.Display(t)
		v.body.SetPosition(pos)
		v.glow.SetPosition(pos)
		v.glow.SetRotation(v.glow.Rotation() + v.node.Spin*spinRate)
	}
}

// HitTest returns the node whose displayed core covers the world point p, preferring the nearest.
func (l *Layer) HitTest(p r2.Vec) (*galaxy.Node, bool) {
	if l.graph == nil {
		return nil, false
	}
	var best *galaxy.Node
	bestD := math.Inf(1)
	for _, n := range l.graph.Nodes {
		d := r2.Norm(r2.Sub(n.Display(l.elapsed), p))
		if d <= n.Radius(l.maxPop)*coreScale+hitPadding && d < bestD {
			best, bestD = n, d
		}
	}
	return best, best != nil
}

// Dispose destroys every display object. It is safe to call more than once.
func (l *Layer) Dispose() {
	if l.disposed {
		return
	}
	l.disposed = true
	l.Shooters.Clear()
	for id, v := range l.views {
		v.destroy()
		delete(l.views, id)
	}
	l.world.Destroy()
	l.Shooters.Container.Destroy()
	l.Stars.Container.Destroy()
}

func applyTransform(c Container, t camera.Transform) {
	c.SetScale(t.Scale, t.Scale)
	c.SetPosition(t.Offset)
}

// EdgeAlpha is the stroke opacity of an edge of similarity w.
func EdgeAlpha(w float64) float64 { return w*0.3 + 0.1 }

// EdgeWidth is the stroke width of an edge of similarity w.
func EdgeWidth(w float64) float64 { return w*2 + 0.5 }

// NebulaPulse is the global aura breathing factor at time t, between 0.85 and 1.
func NebulaPulse(t float64) float64 {
	return 0.85 + 0.15*(0.5+0.5*math.Sin(t*0.8))
}

// NebulaRadius sizes the aura of n with degree d: a base from degree and popularity above 50, a
// small positional shimmer, scaled by the pulse.
func NebulaRadius(n *galaxy.Node, d int, t, pulse float64) float64 {
	base := 25 + float64(d)*6 + math.Max(0, float64(n.Artist.Popularity-50))*0.25
	wob := 2 * math.Sin((n.Pos.X+n.Pos.Y+t*20)*0.002)
	return (base + wob) * (0.9 + 0.2*pulse)
}

// NebulaAlpha is the aura opacity for degree d, capped at 0.25.
func NebulaAlpha(d int) float64 {
	return math.Min(0.08+float64(d)*0.008, 0.25)
}
