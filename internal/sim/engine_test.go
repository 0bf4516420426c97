package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/galaxy"
	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/shared"
)

func node(id string, x, y float64) *galaxy.Node {
	return &galaxy.Node{Artist: models.ArtistRecord{ID: id}, Pos: r2.Vec{X: x, Y: y}}
}

// isolated disables every force so a test can exercise one at a time.
func isolated() Config {
	c := DefaultConfig(r2.Vec{})
	c.Charge = 0
	c.AxisStrength = 0
	c.CenterShift = false
	c.LinkStrength = 0
	return c
}

func TestEngineAlpha(t *testing.T) {
	t.Run("Starts Hot And Decays Geometrically", func(t *testing.T) {
		e := NewEngine(DefaultConfig(r2.Vec{X: 400, Y: 300}), nil)
		e.SetNodes([]*galaxy.Node{node("a", 0, 0)})
		assert.Equal(t, 1.0, e.Alpha())

		e.Tick()
		assert.InDelta(t, 1-DefaultAlphaDecay, e.Alpha(), 1e-12)
		e.Tick()
		assert.InDelta(t, math.Pow(1-DefaultAlphaDecay, 2), e.Alpha(), 1e-12)
	})

	t.Run("Cools To A Stop", func(t *testing.T) {
		e := NewEngine(DefaultConfig(r2.Vec{}), nil)
		e.SetNodes([]*galaxy.Node{node("a", 0, 0), node("b", 10, 10)})

		ticks := 0
		for e.Tick() {
			ticks++
			require.Less(t, ticks, 1000, "engine never cooled")
		}
		assert.Less(t, e.Alpha(), e.Config().AlphaMin)
		assert.InDelta(t, 300, ticks, 5)
		assert.False(t, e.Tick(), "cold engine must not tick")

		e.SetAlpha(0.3)
		e.Restart()
		assert.True(t, e.Tick())
	})

	t.Run("Drag Holds Alpha Floor", func(t *testing.T) {
		e := NewEngine(DefaultConfig(r2.Vec{}), nil)
		a, b := node("a", 0, 0), node("b", 50, 0)
		e.SetNodes([]*galaxy.Node{a, b})
		e.SetEdges([]galaxy.Edge{{Source: "a", Target: "b", Weight: 1}})

		pin := r2.Vec{X: 120, Y: -40}
		require.True(t, e.Drag("a", pin))
		for range 2000 {
			require.True(t, e.Tick(), "dragging must keep the engine running")
			assert.Equal(t, pin, a.Pos)
			assert.Equal(t, r2.Vec{}, a.Vel)
		}
		assert.InDelta(t, 0.1, e.Alpha(), 1e-3)

		e.Release("a")
		assert.Nil(t, a.Pin)
		assert.Equal(t, 0.0, e.AlphaTarget())

		ticks := 0
		for e.Tick() {
			ticks++
			require.Less(t, ticks, 1000)
		}
	})

	t.Run("Drag Unknown Node", func(t *testing.T) {
		e := NewEngine(DefaultConfig(r2.Vec{}), nil)
		assert.False(t, e.Drag("missing", r2.Vec{}))
	})
}

func TestEngineForces(t *testing.T) {
	t.Run("Link Settles At Distance", func(t *testing.T) {
		cfg := isolated()
		cfg.LinkStrength = 0.8
		cfg.AlphaDecay = 0
		e := NewEngine(cfg, nil)
		a, b := node("a", 0, 0), node("b", 600, 0)
		e.SetNodes([]*galaxy.Node{a, b})
		require.Equal(t, 1, e.SetEdges([]galaxy.Edge{{Source: "a", Target: "b", Weight: 1}}))

		for range 500 {
			e.Step()
		}
		assert.InDelta(t, 150, r2.Norm(r2.Sub(b.Pos, a.Pos)), 0.5)
	})

	t.Run("Repulsion Pushes Apart", func(t *testing.T) {
		cfg := isolated()
		cfg.Charge = -1500
		e := NewEngine(cfg, nil)
		a, b := node("a", 0, 0), node("b", 100, 0)
		e.SetNodes([]*galaxy.Node{a, b})

		e.Step()
		assert.Less(t, a.Pos.X, 0.0)
		assert.Greater(t, b.Pos.X, 100.0)
		assert.InDelta(t, 0, a.Pos.X+b.Pos.X-100, 1e-9, "forces must be symmetric")
	})

	t.Run("Repulsion Capped By Distance Max", func(t *testing.T) {
		cfg := isolated()
		cfg.Charge = -1500
		e := NewEngine(cfg, nil)
		a, b := node("a", 0, 0), node("b", 900, 0)
		e.SetNodes([]*galaxy.Node{a, b})

		e.Step()
		assert.Equal(t, r2.Vec{}, a.Vel)
		assert.Equal(t, r2.Vec{}, b.Vel)
	})

	t.Run("Center Shift Moves Mean", func(t *testing.T) {
		cfg := isolated()
		cfg.CenterShift = true
		cfg.Center = r2.Vec{X: 400, Y: 300}
		e := NewEngine(cfg, nil)
		nodes := []*galaxy.Node{node("a", 0, 0), node("b", 100, 50), node("c", -20, 10)}
		e.SetNodes(nodes)

		e.Step()
		var mean r2.Vec
		for _, n := range nodes {
			mean = r2.Add(mean, n.Pos)
		}
		mean = r2.Scale(1.0/3, mean)
		assert.InDelta(t, 400, mean.X, 1e-9)
		assert.InDelta(t, 300, mean.Y, 1e-9)
	})

	t.Run("Axis Springs Pull Toward Center", func(t *testing.T) {
		cfg := isolated()
		cfg.AxisStrength = 0.05
		cfg.Center = r2.Vec{X: 100, Y: 100}
		e := NewEngine(cfg, nil)
		a := node("a", 0, 200)
		e.SetNodes([]*galaxy.Node{a})

		e.Step()
		assert.Greater(t, a.Pos.X, 0.0)
		assert.Less(t, a.Pos.Y, 200.0)
	})

	t.Run("Many Nodes Stay Finite", func(t *testing.T) {
		e := NewEngine(DefaultConfig(r2.Vec{X: 500, Y: 500}), nil)
		var artists []models.ArtistRecord
		for i := range 120 {
			artists = append(artists, models.ArtistRecord{ID: string(rune(0x100 + i)), Genres: []string{[]string{"pop", "rock", "jazz"}[i%3]}})
		}
		g := galaxy.Build(artists, galaxy.Options{})
		e.SetNodes(g.Nodes)
		e.SetEdges(g.Edges)

		for e.Tick() {
		}
		for _, n := range g.Nodes {
			require.False(t, math.IsNaN(n.Pos.X) || math.IsNaN(n.Pos.Y), "position became NaN")
		}
	})
}

func TestEngineEdgesAndSubscribers(t *testing.T) {
	t.Run("Unknown Edges Dropped", func(t *testing.T) {
		e := NewEngine(DefaultConfig(r2.Vec{}), nil)
		e.SetNodes([]*galaxy.Node{node("a", 0, 0), node("b", 1, 1)})
		n := e.SetEdges([]galaxy.Edge{
			{Source: "a", Target: "b", Weight: 1},
			{Source: "a", Target: "zzz", Weight: 1},
			{Source: "a", Target: "a", Weight: 1},
		})
		assert.Equal(t, 1, n)
	})

	t.Run("OnTick Subscribe And Cancel", func(t *testing.T) {
		e := NewEngine(DefaultConfig(r2.Vec{}), nil)
		e.SetNodes([]*galaxy.Node{node("a", 0, 0)})

		var first, second int
		cancel := e.OnTick(func() { first++ })
		e.OnTick(func() { second++ })

		e.Tick()
		cancel()
		e.Tick()

		assert.Equal(t, 1, first)
		assert.Equal(t, 2, second)
	})
}

func TestConfigFrom(t *testing.T) {
	g := shared.DefaultConfig().Galaxy
	g.LinkDistance = 90
	g.Charge = 0

	c := ConfigFrom(g, r2.Vec{X: 1, Y: 2})
	assert.Equal(t, 90.0, c.LinkDistance)
	assert.Equal(t, -1500.0, c.Charge, "zero keeps the default")
	assert.Equal(t, r2.Vec{X: 1, Y: 2}, c.Center)
	assert.Equal(t, 800.0, c.ChargeDistanceMax)
}
