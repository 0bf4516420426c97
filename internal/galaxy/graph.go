// package galaxy turns artist records into the similarity graph the force layout positions
package galaxy

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/models"
)

const (
	// DefaultThreshold is the overlap ratio an artist pair must exceed to be linked.
	DefaultThreshold = 0.1

	MinNodeRadius = 5.0
	MaxNodeRadius = 25.0

	// SeedExtent bounds the square new nodes are scattered over.
	SeedExtent = 1000.0
)

// Wobble is the decorative idle orbit of a node. It is assigned once and never fed to the simulation.
type Wobble struct {
	Phase  float64
	Speed  float64
	Radius float64
}

// Offset returns the wobble displacement at elapsed time t (seconds).
func (w Wobble) Offset(t float64) r2.Vec {
	a := w.Speed*t + w.Phase
	return r2.Vec{X: math.Cos(a) * w.Radius, Y: math.Sin(a) * w.Radius}
}

// Node is one artist in the galaxy. Pos and Vel belong to the force engine; Pin is set while the node
// is dragged.
type Node struct {
	Artist models.ArtistRecord
	Color  Color
	Pos    r2.Vec
	Vel    r2.Vec
	Pin    *r2.Vec
	Wobble Wobble
	// Spin is the glow rotation rate, in radians per tick before scaling.
	Spin float64
}

// ID returns the artist id of the node.
func (n *Node) ID() string { return n.Artist.ID }

// Display returns the on-screen position: the simulated position plus the wobble at time t.
func (n *Node) Display(t float64) r2.Vec {
	return r2.Add(n.Pos, n.Wobble.Offset(t))
}

// Radius scales the node between [MinNodeRadius] and [MaxNodeRadius] by popularity, where 50 maps to
// the minimum and maxPopularity to the maximum.
func (n *Node) Radius(maxPopularity int) float64 {
	span := float64(maxPopularity - 50)
	if span <= 0 {
		return MinNodeRadius
	}
	r := MinNodeRadius + (MaxNodeRadius-MinNodeRadius)*(float64(n.Artist.Popularity-50)/span)
	return math.Max(MinNodeRadius, math.Min(MaxNodeRadius, r))
}

// Edge links two artists sharing genre tags. Source precedes Target in the node order.
type Edge struct {
	Source string
	Target string
	Weight float64
}

// Graph is the node and edge set derived from one artist list.
type Graph struct {
	Nodes  []*Node
	Edges  []Edge
	index  map[string]int
	degree map[string]int
}

// Node returns the node for id.
func (g *Graph) Node(id string) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.Nodes[i], true
}

// Degree returns the number of edges touching id.
func (g *Graph) Degree(id string) int {
	return g.degree[id]
}

// MaxPopularity returns the highest popularity in the graph, or 100 when there are no nodes.
func (g *Graph) MaxPopularity() int {
	if len(g.Nodes) == 0 {
		return 100
	}
	best := 0
	for _, n := range g.Nodes {
		best = max(best, n.Artist.Popularity)
	}
	if best == 0 {
		return 100
	}
	return best
}

// Options controls graph construction.
type Options struct {
	// Threshold defaults to [DefaultThreshold] when zero.
	Threshold float64
	// Rand seeds positions and wobble. A time-seeded source is used when nil.
	Rand *rand.Rand
}

// Build creates the graph for artists. Duplicate ids after the first are ignored.
//
// A pair is linked when the artists share at least one tag and shared/min(|A|,|B|) exceeds the
// threshold, with an empty tag set counted as size 1.
func Build(artists []models.ArtistRecord, opts Options) *Graph {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	artists = models.DedupeArtists(artists)
	g := &Graph{
		Nodes:  make([]*Node, 0, len(artists)),
		index:  make(map[string]int, len(artists)),
		degree: make(map[string]int, len(artists)),
	}
	tags := make([]map[string]struct{}, 0, len(artists))

	for _, a := range artists {
		g.index[a.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, newNode(a, rng))
		tags = append(tags, tagSet(a.Genres))
	}

	for i := 0; i < len(g.Nodes); i++ {
		for j := i + 1; j < len(g.Nodes); j++ {
			w, ok := Similarity(tags[i], tags[j], threshold)
			if !ok {
				continue
			}
			src, dst := g.Nodes[i].ID(), g.Nodes[j].ID()
			g.Edges = append(g.Edges, Edge{Source: src, Target: dst, Weight: w})
			g.degree[src]++
			g.degree[dst]++
		}
	}

	return g
}

// Similarity returns the overlap ratio of two tag sets and whether it links them.
func Similarity(a, b map[string]struct{}, threshold float64) (float64, bool) {
	shared := 0
	for tag := range a {
		if _, ok := b[tag]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0, false
	}

	ratio := float64(shared) / float64(min(max(len(a), 1), max(len(b), 1)))
	return ratio, ratio > threshold
}

func tagSet(genres []string) map[string]struct{} {
	set := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		set[g] = struct{}{}
	}
	return set
}

func newNode(a models.ArtistRecord, rng *rand.Rand) *Node {
	spin := rng.Float64()*0.6 + 0.2
	if rng.Float64() < 0.5 {
		spin = -spin
	}
	return &Node{
		Artist: a,
		Color:  ColorForGenres(a.Genres),
		Pos:    r2.Vec{X: rng.Float64() * SeedExtent, Y: rng.Float64() * SeedExtent},
		Wobble: Wobble{
			Phase:  rng.Float64() * 2 * math.Pi,
			Speed:  0.4 + rng.Float64()*0.6,
			Radius: 2 + rng.Float64()*3,
		},
		Spin: spin,
	}
}

// Adopt copies position, velocity, wobble and pin of nodes that also exist in prev, so a rebuilt
// graph continues from where the old one was. It returns the number of carried nodes.
func (g *Graph) Adopt(prev *Graph) int {
	if prev == nil {
		return 0
	}
	carried := 0
	for _, n := range g.Nodes {
		old, ok := prev.Node(n.ID())
		if !ok {
			continue
		}
		n.Pos, n.Vel, n.Pin = old.Pos, old.Vel, old.Pin
		n.Wobble, n.Spin = old.Wobble, old.Spin
		carried++
	}
	return carried
}

// SameShape reports whether g and other hold the same node ids and the same weighted edges.
func (g *Graph) SameShape(other *Graph) bool {
	if other == nil || len(g.Nodes) != len(other.Nodes) || len(g.Edges) != len(other.Edges) {
		return false
	}
	for _, n := range g.Nodes {
		if _, ok := other.Node(n.ID()); !ok {
			return false
		}
	}

	edges := make(map[[2]string]float64, len(other.Edges))
	for _, e := range other.Edges {
		edges[edgeKey(e)] = e.Weight
	}
	for _, e := range g.Edges {
		w, ok := edges[edgeKey(e)]
		if !ok || w != e.Weight {
			return false
		}
	}
	return true
}

func edgeKey(e Edge) [2]string {
	if e.Source > e.Target {
		return [2]string{e.Target, e.Source}
	}
	return [2]string{e.Source, e.Target}
}
