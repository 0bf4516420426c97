package render_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/camera"
	"github.com/desertthunder/cosmic/internal/galaxy"
	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/render"
	"github.com/desertthunder/cosmic/internal/render/scene"
)

func seeded() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

func artists(ids ...string) []models.ArtistRecord {
	out := make([]models.ArtistRecord, len(ids))
	for i, id := range ids {
		out[i] = models.ArtistRecord{ID: id, Name: "artist " + id, Popularity: 40 + i*10, Genres: []string{"indie pop"}}
	}
	return out
}

func TestShooterAlpha(t *testing.T) {
	assert.Equal(t, 0.0, render.ShooterAlpha(0))
	assert.InDelta(t, 0.5, render.ShooterAlpha(0.075), 1e-12)
	assert.InDelta(t, 1.0, render.ShooterAlpha(0.15), 1e-12)
	assert.InDelta(t, 0.5, render.ShooterAlpha(0.575), 1e-12)
	assert.Equal(t, 0.0, render.ShooterAlpha(1))
	assert.Equal(t, 0.0, render.ShooterAlpha(1.3))

	prev := -1.0
	for i := 0; i <= 15; i++ {
		a := render.ShooterAlpha(float64(i) / 100)
		assert.GreaterOrEqual(t, a, prev, "ramp is monotonic")
		prev = a
	}
}

func TestShootingStars(t *testing.T) {
	screen := render.Rect{W: 800, H: 600}

	t.Run("Spawn Heads Inward With Bounded Speed And Life", func(t *testing.T) {
		s := scene.New(screen.W, screen.H)
		ss := render.NewShootingStars(s, 1.5, 0.008, seeded())
		for range 50 {
			sh := ss.Spawn(screen)
			speed := r2.Norm(sh.Vel)
			assert.GreaterOrEqual(t, speed, 1200.0)
			assert.LessOrEqual(t, speed, 1800.0)
			assert.GreaterOrEqual(t, sh.MaxLife, 0.9)
			assert.LessOrEqual(t, sh.MaxLife, 1.6)

			toCenter := r2.Sub(screen.Center(), sh.Pos)
			assert.Greater(t, r2.Dot(toCenter, sh.Vel), 0.0, "streak from %v moves away from the screen", sh.Pos)
		}
		assert.Equal(t, 50, ss.Spawned())
	})

	t.Run("Cooldown Gates Spawning", func(t *testing.T) {
		s := scene.New(screen.W, screen.H)
		ss := render.NewShootingStars(s, 1.5, 1, seeded())
		for range 80 {
			ss.Update(1.0/60, screen)
		}
		assert.Equal(t, 0, ss.Spawned(), "nothing before 1.5s")
		for range 20 {
			ss.Update(1.0/60, screen)
		}
		assert.Equal(t, 1, ss.Spawned())
	})

	t.Run("Streaks Despawn", func(t *testing.T) {
		s := scene.New(screen.W, screen.H)
		ss := render.NewShootingStars(s, 1e9, 0, seeded())
		sh := ss.Spawn(screen)
		require.Len(t, ss.Active, 1)

		ss.Update(0.05, screen)
		assert.Greater(t, sh.Sprite.Alpha(), 0.0)
		sx, _ := sh.Sprite.Scale()
		assert.Greater(t, sx, 1.0)

		for range 200 {
			ss.Update(1.0/60, screen)
		}
		assert.Empty(t, ss.Active)
		assert.True(t, sh.Sprite.Destroyed())
		assert.Empty(t, ss.Container.Children())
	})
}

func TestStarfield(t *testing.T) {
	screen := render.Rect{W: 400, H: 300}
	s := scene.New(screen.W, screen.H)
	sf := render.NewStarfield(s, 200, seeded())
	require.Len(t, sf.Stars, 200)

	for _, st := range sf.Stars {
		assert.GreaterOrEqual(t, st.Layer, 0.0)
		assert.Less(t, st.Layer, 1.0)
		sx, sy := st.Sprite.Scale()
		assert.InDelta(t, 0.6+1.4*st.Layer, sx, 1e-12)
		assert.Equal(t, sx, sy)
	}

	hue := sf.Hue()
	for range 10000 {
		sf.Update(1, screen)
	}
	assert.InDelta(t, math.Mod(hue+10000*0.02, 360), sf.Hue(), 1e-6)

	for _, st := range sf.Stars {
		assert.GreaterOrEqual(t, st.Pos.X, -2.0-st.VX)
		assert.LessOrEqual(t, st.Pos.X, screen.W+2)
		assert.GreaterOrEqual(t, st.Pos.Y, -2.0)
		assert.LessOrEqual(t, st.Pos.Y, screen.H+2+st.VY)
		a := st.Sprite.Alpha()
		assert.GreaterOrEqual(t, a, 0.1-1e-12)
		assert.LessOrEqual(t, a, 0.9+1e-12)
	}
}

func TestHSL(t *testing.T) {
	assert.Equal(t, galaxy.Color(0xff0000), render.HSL(0, 1, 0.5))
	assert.Equal(t, galaxy.Color(0xffffff), render.HSL(210, 0, 1))
	r, g, b := render.HSL(210, 0.08, 0.95).RGB()
	assert.Greater(t, b, r, "cool tint leans blue")
	assert.GreaterOrEqual(t, g, r)
}

func TestLayer(t *testing.T) {
	newLayer := func() (*scene.Stage, *render.Layer) {
		s := scene.New(800, 600)
		opts := render.DefaultOptions()
		opts.StarCount = 20
		opts.Rand = seeded()
		return s, render.NewLayer(s, opts)
	}

	t.Run("Keeps Display Objects Across Graph Updates", func(t *testing.T) {
		s, l := newLayer()
		l.SetGraph(galaxy.Build(artists("a", "b", "c"), galaxy.Options{Rand: seeded()}))
		assert.Equal(t, 3, l.Views())
		before := s.Len()

		l.SetGraph(galaxy.Build(artists("b", "c", "d", "e"), galaxy.Options{Rand: seeded()}))
		assert.Equal(t, 4, l.Views())
		assert.Greater(t, s.Len(), before)

		l.SetGraph(galaxy.Build(artists("e"), galaxy.Options{Rand: seeded()}))
		assert.Equal(t, 1, l.Views())
	})

	t.Run("Draw Follows Simulation Positions", func(t *testing.T) {
		s, l := newLayer()
		g := galaxy.Build(artists("a", "b"), galaxy.Options{Rand: seeded()})
		require.Len(t, g.Edges, 1)
		l.SetGraph(g)
		l.Frame(1.0/60, camera.New(800, 600, camera.DefaultLimits))

		g.Nodes[0].Pos = r2.Vec{X: 100, Y: 100}
		g.Nodes[1].Pos = r2.Vec{X: 300, Y: 100}
		l.Draw()

		var lines, nebulas int
		s.Walk(func(p scene.Primitive) {
			switch {
			case p.Kind == scene.KindLine:
				lines++
				assert.InDelta(t, render.EdgeWidth(1), p.Width, 1e-9)
				assert.InDelta(t, render.EdgeAlpha(1), p.Alpha, 1e-9)
			case p.Kind == scene.KindCircle && p.Blend == render.BlendAdd:
				nebulas++
				assert.Equal(t, galaxy.NebulaColor, p.Color)
			}
		})
		assert.Equal(t, 1, lines)
		assert.Equal(t, 2, nebulas)

		hit, ok := l.HitTest(g.Nodes[1].Display(l.Elapsed()))
		require.True(t, ok)
		assert.Equal(t, "b", hit.ID())
		_, ok = l.HitTest(r2.Vec{X: -5000, Y: -5000})
		assert.False(t, ok)
	})

	t.Run("Isolated Nodes Have No Nebula", func(t *testing.T) {
		s, l := newLayer()
		recs := artists("a", "b")
		recs[1].Genres = []string{"ambient"}
		l.SetGraph(galaxy.Build(recs, galaxy.Options{Rand: seeded()}))
		l.Draw()

		s.Walk(func(p scene.Primitive) {
			assert.False(t, p.Kind == scene.KindCircle && p.Blend == render.BlendAdd)
			assert.NotEqual(t, scene.KindLine, p.Kind)
		})
	})

	t.Run("Dispose Is Idempotent", func(t *testing.T) {
		s, l := newLayer()
		l.SetGraph(galaxy.Build(artists("a", "b", "c"), galaxy.Options{Rand: seeded()}))
		l.Shooters.Spawn(s.Screen())

		l.Dispose()
		assert.Equal(t, 0, s.Len())
		assert.Equal(t, 0, l.Views())
		assert.NotPanics(t, l.Dispose)
		assert.NotPanics(t, l.Draw)
		assert.NotPanics(t, func() { l.Frame(0.016, camera.New(800, 600, camera.DefaultLimits)) })
	})
}

func TestNebula(t *testing.T) {
	assert.InDelta(t, 0.85, render.NebulaPulse(-math.Pi/2/0.8), 1e-12)
	assert.InDelta(t, 1.0, render.NebulaPulse(math.Pi/2/0.8), 1e-12)

	assert.InDelta(t, 0.088, render.NebulaAlpha(1), 1e-12)
	assert.Equal(t, 0.25, render.NebulaAlpha(100))

	n := &galaxy.Node{Artist: models.ArtistRecord{Popularity: 90}}
	want := (25 + 3*6 + 40*0.25) * (0.9 + 0.2*1)
	assert.InDelta(t, want, render.NebulaRadius(n, 3, 0, 1), 1e-9)

	assert.InDelta(t, 0.4, render.EdgeAlpha(1), 1e-12)
	assert.InDelta(t, 1.5, render.EdgeWidth(0.5), 1e-12)
}
