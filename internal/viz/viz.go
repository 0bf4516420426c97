// package viz wires the graph builder, force engine, camera and render layer into one visualization
// session driven by a frame loop and pointer input.
//
// A Session is owned by a single goroutine (the frame loop); the mutex only protects against
// late calls from teardown paths.
package viz

import (
	"fmt"
	"io"
	"math/rand/v2"
	"sync"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/camera"
	"github.com/desertthunder/cosmic/internal/galaxy"
	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/render"
	"github.com/desertthunder/cosmic/internal/shared"
	"github.com/desertthunder/cosmic/internal/sim"
)

// ReheatAlpha is the temperature a running session is raised to when its artist set changes.
const ReheatAlpha = 0.3

// Options configures a [Session].
type Options struct {
	Galaxy shared.GalaxyConfig
	Rand   *rand.Rand
	Logger *log.Logger
}

// Session is one running visualization.
type Session struct {
	mu sync.Mutex

	scene  render.SceneGraph
	opts   Options
	logger *log.Logger

	graph  *galaxy.Graph
	cam    *camera.Camera
	engine *sim.Engine
	layer  *render.Layer

	unsubscribe func()
	dragging    string

	disposeOnce sync.Once
	disposed    bool
}

// Initialize builds the graph for artists and attaches a new session to scene.
func Initialize(scene render.SceneGraph, artists []models.ArtistRecord, opts Options) (*Session, error) {
	if scene == nil {
		return nil, fmt.Errorf("%w: scene graph is required", shared.ErrInvalidInput)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	screen := scene.Screen()
	g := opts.Galaxy
	s := &Session{
		scene:  scene,
		opts:   opts,
		logger: opts.Logger.WithPrefix("viz"),
		cam:    camera.New(screen.W, screen.H, camera.Limits{Min: g.ZoomMin, Max: g.ZoomMax, Factor: g.ZoomFactor}),
		engine: sim.NewEngine(sim.ConfigFrom(g, screen.Center()), opts.Logger),
		layer:  render.NewLayer(scene, LayerOptions(g, opts.Rand)),
	}

	s.load(s.build(artists))
	s.unsubscribe = s.engine.OnTick(s.layer.Draw)
	s.layer.Draw()

	s.logger.Debug("session initialized", "nodes", len(s.graph.Nodes), "edges", len(s.graph.Edges))
	return s, nil
}

// LayerOptions maps the galaxy config onto render options. Zero values keep the defaults.
func LayerOptions(g shared.GalaxyConfig, rng *rand.Rand) render.Options {
	o := render.DefaultOptions()
	o.Rand = rng
	if g.StarCount > 0 {
		o.StarCount = g.StarCount
	}
	if g.ShootingCooldown.Duration > 0 {
		o.ShootingCooldown = g.ShootingCooldown.Seconds()
	}
	if g.ShootingChance > 0 {
		o.ShootingChance = g.ShootingChance
	}
	if g.StarParallax > 0 {
		o.StarParallax = g.StarParallax
	}
	if g.ShooterParallax > 0 {
		o.ShooterParallax = g.ShooterParallax
	}
	return o
}

func (s *Session) build(artists []models.ArtistRecord) *galaxy.Graph {
	return galaxy.Build(artists, galaxy.Options{Threshold: s.opts.Galaxy.EdgeThreshold, Rand: s.opts.Rand})
}

func (s *Session) load(g *galaxy.Graph) {
	s.graph = g
	s.engine.SetNodes(g.Nodes)
	s.engine.SetEdges(g.Edges)
	s.layer.SetGraph(g)
}

// Graph returns the graph on display.
func (s *Session) Graph() *galaxy.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// Camera returns the session camera.
func (s *Session) Camera() *camera.Camera { return s.cam }

// Engine returns the force simulation.
func (s *Session) Engine() *sim.Engine { return s.engine }

// Layer returns the render layer.
func (s *Session) Layer() *render.Layer { return s.layer }

// Dragging returns the id of the node being dragged, if any.
func (s *Session) Dragging() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging, s.dragging != ""
}

// Advance runs one frame of dt seconds: background effects, one simulation tick when the engine
// is warm, and a redraw of the graph.
func (s *Session) Advance(dt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return shared.ErrDisposed
	}

	s.layer.Frame(dt, s.cam)
	if !s.engine.Tick() {
		s.layer.Draw()
	}
	return nil
}

// Run advances the engine n ticks without frame effects, for headless layouts.
func (s *Session) Run(n int) error {
	for range n {
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			return shared.ErrDisposed
		}
		if !s.engine.Tick() {
			s.mu.Unlock()
			break
		}
		s.mu.Unlock()
	}
	return nil
}

// PointerDown starts a node drag when p (screen space) hits a node, otherwise a camera pan. It
// reports whether a node was hit.
func (s *Session) PointerDown(p r2.Vec) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return false, shared.ErrDisposed
	}

	world := s.cam.ToWorld(p)
	if n, ok := s.layer.HitTest(world); ok {
		s.dragging = n.ID()
		s.engine.Drag(s.dragging, world)
		return true, nil
	}
	s.cam.BeginPan(p)
	return false, nil
}

// PointerMove moves the dragged node or the camera.
func (s *Session) PointerMove(p r2.Vec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return shared.ErrDisposed
	}

	if s.dragging != "" {
		s.engine.Drag(s.dragging, s.cam.ToWorld(p))
		return nil
	}
	s.cam.MovePan(p)
	return nil
}

// PointerUp releases any drag or pan.
func (s *Session) PointerUp() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return shared.ErrDisposed
	}

	if s.dragging != "" {
		s.engine.Release(s.dragging)
		s.dragging = ""
	}
	s.cam.EndPan()
	return nil
}

// Wheel zooms the camera one step anchored at p and returns the new zoom.
func (s *Session) Wheel(p r2.Vec, deltaY float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return 0, shared.ErrDisposed
	}
	return s.cam.Wheel(p, deltaY), nil
}

// Hover returns the node under screen point p.
func (s *Session) Hover(p r2.Vec) (*galaxy.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, false
	}
	return s.layer.HitTest(s.cam.ToWorld(p))
}

// SetArtists replaces the artist set. Surviving nodes keep their position and motion and new nodes
// are scattered. The simulation is reheated only when the node or edge set changed.
func (s *Session) SetArtists(artists []models.ArtistRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return shared.ErrDisposed
	}

	next := s.build(artists)
	changed := !next.SameShape(s.graph)
	carried := next.Adopt(s.graph)
	s.load(next)

	if s.dragging != "" {
		if n, ok := next.Node(s.dragging); !ok || n.Pin == nil {
			s.engine.Release(s.dragging)
			s.dragging = ""
		}
	}

	if changed {
		s.engine.SetAlpha(max(s.engine.Alpha(), ReheatAlpha))
		s.engine.Restart()
	}

	s.logger.Debug("artists updated", "nodes", len(next.Nodes), "carried", carried, "edges", len(next.Edges), "changed", changed)
	return nil
}

// Resize moves the point the layout settles around to the middle of a w by h screen. The
// simulation is reheated when the center moves.
func (s *Session) Resize(w, h float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return shared.ErrDisposed
	}

	center := r2.Vec{X: w / 2, Y: h / 2}
	if center == s.engine.Config().Center {
		return nil
	}
	s.engine.SetCenter(center)
	s.engine.SetAlpha(max(s.engine.Alpha(), ReheatAlpha))
	s.engine.Restart()
	s.logger.Debug("layout recentered", "x", center.X, "y", center.Y)
	return nil
}

// Snapshot writes the current frame through the scene's capture backend.
func (s *Session) Snapshot(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return shared.ErrDisposed
	}

	c, ok := s.scene.(render.Capturer)
	if !ok {
		return fmt.Errorf("%w: scene graph cannot capture frames", shared.ErrInvalidInput)
	}
	s.layer.Draw()
	return c.Capture(w)
}

// Dispose stops the simulation and destroys every display object. Later calls do nothing.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.disposed = true
		s.unsubscribe()
		s.engine.Stop()
		s.layer.Dispose()
		s.logger.Debug("session disposed")
	})
}

// ArtistURL links to the artist page on the catalog.
func ArtistURL(id string) string {
	return "https://open.spotify.com/artist/" + id
}
