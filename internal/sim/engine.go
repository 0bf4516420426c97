package sim

import (
	"io"
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/galaxy"
)

// link is an edge resolved to node indices with its precomputed strength and bias.
type link struct {
	source, target int
	strength       float64
	bias           float64
}

// body adapts a node to [barneshut.Particle2]. Every node has unit mass, so aggregate masses are
// node counts.
type body struct{ n *galaxy.Node }

func (b *body) Coord2() r2.Vec { return b.n.Pos }
func (b *body) Mass() float64  { return 1 }

type subscriber struct {
	id int
	fn func()
}

// Engine is the default [ForceSimulation].
//
// An Engine is not safe for concurrent use; it is owned by the frame loop.
type Engine struct {
	cfg    Config
	logger *log.Logger
	rng    *rand.Rand

	nodes     []*galaxy.Node
	index     map[string]int
	bodies    []barneshut.Particle2
	links     []link
	plane     barneshut.Plane
	treeBroke bool

	alpha       float64
	alphaTarget float64
	stopped     bool
	ticks       int

	subs   []subscriber
	nextID int
}

var _ ForceSimulation = (*Engine)(nil)

// NewEngine creates a hot engine (alpha 1) with no nodes.
func NewEngine(cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.WithPrefix("sim"),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		index:  make(map[string]int),
		alpha:  1,
	}
}

// Config returns the force constants in use.
func (e *Engine) Config() Config { return e.cfg }

// SetCenter moves the point the centering forces pull toward.
func (e *Engine) SetCenter(c r2.Vec) { e.cfg.Center = c }

func (e *Engine) SetNodes(nodes []*galaxy.Node) {
	e.nodes = nodes
	e.index = make(map[string]int, len(nodes))
	e.bodies = make([]barneshut.Particle2, len(nodes))
	for i, n := range nodes {
		e.index[n.ID()] = i
		e.bodies[i] = &body{n: n}
	}
	e.plane = barneshut.Plane{Particles: e.bodies}
	e.links = nil
}

func (e *Engine) SetEdges(edges []galaxy.Edge) int {
	count := make([]int, len(e.nodes))
	resolved := make([]link, 0, len(edges))
	for _, edge := range edges {
		s, ok := e.index[edge.Source]
		if !ok {
			continue
		}
		t, ok := e.index[edge.Target]
		if !ok || s == t {
			continue
		}
		resolved = append(resolved, link{source: s, target: t, strength: edge.Weight * e.cfg.LinkStrength})
		count[s]++
		count[t]++
	}

	for i := range resolved {
		l := &resolved[i]
		l.bias = float64(count[l.source]) / float64(count[l.source]+count[l.target])
	}
	if dropped := len(edges) - len(resolved); dropped > 0 {
		e.logger.Debug("dropped unresolved edges", "count", dropped)
	}
	e.links = resolved
	return len(resolved)
}

// Nodes returns the simulated nodes.
func (e *Engine) Nodes() []*galaxy.Node { return e.nodes }

func (e *Engine) Alpha() float64 { return e.alpha }

func (e *Engine) SetAlpha(alpha float64) { e.alpha = alpha }

// AlphaTarget returns the value alpha is decaying toward.
func (e *Engine) AlphaTarget() float64 { return e.alphaTarget }

func (e *Engine) SetAlphaTarget(target float64) { e.alphaTarget = target }

func (e *Engine) Restart() { e.stopped = false }

// Stop freezes the engine until the next [Engine.Restart].
func (e *Engine) Stop() { e.stopped = true }

// Active reports whether the next call to Tick will move nodes.
func (e *Engine) Active() bool { return !e.stopped }

// Ticks returns the number of steps taken.
func (e *Engine) Ticks() int { return e.ticks }

func (e *Engine) Drag(id string, pos r2.Vec) bool {
	i, ok := e.index[id]
	if !ok {
		return false
	}
	p := pos
	e.nodes[i].Pin = &p
	e.alphaTarget = e.cfg.DragAlphaTarget
	e.Restart()
	return true
}

func (e *Engine) Release(id string) {
	if i, ok := e.index[id]; ok {
		e.nodes[i].Pin = nil
	}
	e.alphaTarget = 0
}

func (e *Engine) OnTick(fn func()) func() {
	id := e.nextID
	e.nextID++
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) Tick() bool {
	if e.stopped {
		return false
	}

	e.Step()
	for _, s := range e.subs {
		s.fn()
	}

	if e.alpha < e.cfg.AlphaMin {
		e.stopped = true
	}
	return true
}

// Step advances the simulation once without notifying subscribers or checking the stop condition.
func (e *Engine) Step() {
	e.ticks++
	e.alpha += (e.alphaTarget - e.alpha) * e.cfg.AlphaDecay

	e.applyLinks()
	e.applyCharge()
	e.applyCenter()
	e.applyAxis()

	damp := 1 - e.cfg.VelocityDecay
	for _, n := range e.nodes {
		if n.Pin != nil {
			n.Pos = *n.Pin
			n.Vel = r2.Vec{}
			continue
		}
		n.Vel = r2.Scale(damp, n.Vel)
		n.Pos = r2.Add(n.Pos, n.Vel)
	}
}

// Energy returns the summed squared speed of all nodes.
func (e *Engine) Energy() float64 {
	var sum float64
	for _, n := range e.nodes {
		sum += r2.Norm2(n.Vel)
	}
	return sum
}

func (e *Engine) jiggle() float64 {
	return (e.rng.Float64() - 0.5) * 1e-6
}

// applyLinks pulls linked nodes toward LinkDistance, splitting the correction by degree so that
// well connected nodes move less.
func (e *Engine) applyLinks() {
	for _, l := range e.links {
		s, t := e.nodes[l.source], e.nodes[l.target]
		x := t.Pos.X + t.Vel.X - s.Pos.X - s.Vel.X
		if x == 0 {
			x = e.jiggle()
		}
		y := t.Pos.Y + t.Vel.Y - s.Pos.Y - s.Vel.Y
		if y == 0 {
			y = e.jiggle()
		}

		d := math.Hypot(x, y)
		k := (d - e.cfg.LinkDistance) / d * e.alpha * l.strength
		x, y = x*k, y*k

		t.Vel.X -= x * l.bias
		t.Vel.Y -= y * l.bias
		s.Vel.X += x * (1 - l.bias)
		s.Vel.Y += y * (1 - l.bias)
	}
}

// applyCharge adds the many-body force using a Barnes-Hut tree. Interactions beyond
// ChargeDistanceMax are ignored.
func (e *Engine) applyCharge() {
	if len(e.nodes) < 2 || e.cfg.Charge == 0 {
		return
	}

	theta := e.cfg.Theta
	if err := e.plane.Reset(); err != nil {
		if !e.treeBroke {
			e.logger.Warn("barnes-hut tree unavailable, using direct summation", "err", err)
			e.treeBroke = true
		}
		theta = 0
	}

	maxD2 := e.cfg.ChargeDistanceMax * e.cfg.ChargeDistanceMax
	minD2 := e.cfg.ChargeDistanceMin * e.cfg.ChargeDistanceMin
	charge := e.cfg.Charge
	force := func(p1, p2 barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		if p2 != nil && p2 == p1 {
			return r2.Vec{}
		}
		d2 := r2.Norm2(v)
		if d2 >= maxD2 {
			return r2.Vec{}
		}
		if d2 == 0 {
			v = r2.Vec{X: e.jiggle(), Y: e.jiggle()}
			d2 = r2.Norm2(v)
		}
		if d2 < minD2 {
			d2 = math.Sqrt(minD2 * d2)
		}
		return r2.Scale(charge*m2/d2, v)
	}

	for _, b := range e.bodies {
		f := e.plane.ForceOn(b, theta, force)
		n := b.(*body).n
		n.Vel = r2.Add(n.Vel, r2.Scale(e.alpha, f))
	}
}

// applyCenter translates every node so that their mean sits on the center.
func (e *Engine) applyCenter() {
	if !e.cfg.CenterShift || len(e.nodes) == 0 {
		return
	}
	var mean r2.Vec
	for _, n := range e.nodes {
		mean = r2.Add(mean, n.Pos)
	}
	mean = r2.Scale(1/float64(len(e.nodes)), mean)
	shift := r2.Sub(mean, e.cfg.Center)
	for _, n := range e.nodes {
		n.Pos = r2.Sub(n.Pos, shift)
	}
}

// applyAxis is a weak spring toward the center on each axis.
func (e *Engine) applyAxis() {
	k := e.cfg.AxisStrength * e.alpha
	for _, n := range e.nodes {
		n.Vel.X += (e.cfg.Center.X - n.Pos.X) * k
		n.Vel.Y += (e.cfg.Center.Y - n.Pos.Y) * k
	}
}
