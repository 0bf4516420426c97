package render

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	shooterFadeIn    = 0.15
	shooterMargin    = 100.0
	shooterJitter    = 0.25
	shooterMinSpeed  = 1200.0
	shooterSpeedSpan = 600.0
	shooterMinLife   = 0.9
	shooterLifeSpan  = 0.7
	shooterStretch   = 0.4
	shooterEdgeInset = 20.0
)

// ShooterAlpha is the opacity of a shooting star at normalized life t in [0,1]: a linear ramp to 1
// over the first 15% and a linear fade to 0 over the rest.
func ShooterAlpha(t float64) float64 {
	if t < shooterFadeIn {
		return t / shooterFadeIn
	}
	return math.Max(0, 1-(t-shooterFadeIn)/(1-shooterFadeIn))
}

// Shooter is one streak in flight.
type Shooter struct {
	Sprite  Sprite
	Pos     r2.Vec
	Vel     r2.Vec
	Life    float64
	MaxLife float64
}

// Progress returns life as a fraction of the lifetime.
func (s *Shooter) Progress() float64 { return s.Life / s.MaxLife }

// ShootingStars spawns and retires streak sprites.
type ShootingStars struct {
	Container Container
	Active    []*Shooter

	scene       SceneGraph
	tex         Texture
	rng         *rand.Rand
	cooldown    float64
	chance      float64
	accumulator float64
	spawned     int
}

// NewShootingStars creates the layer. cooldown is in seconds; chance is the per-frame spawn
// probability once the cooldown has elapsed.
func NewShootingStars(scene SceneGraph, cooldown, chance float64, rng *rand.Rand) *ShootingStars {
	return &ShootingStars{
		Container: scene.NewContainer(),
		scene:     scene,
		tex:       scene.GenerateTexture(streakTexture),
		rng:       rng,
		cooldown:  cooldown,
		chance:    chance,
	}
}

// Spawned returns how many streaks have been created.
func (ss *ShootingStars) Spawned() int { return ss.spawned }

// Update advances the spawn accumulator and every active streak by dt seconds.
func (ss *ShootingStars) Update(dt float64, screen Rect) {
	ss.accumulator += dt
	if ss.accumulator > ss.cooldown && ss.rng.Float64() < ss.chance {
		ss.Spawn(screen)
		ss.accumulator = 0
	}

	kept := ss.Active[:0]
	for _, s := range ss.Active {
		s.Life += dt
		s.Pos = r2.Add(s.Pos, r2.Scale(dt, s.Vel))

		t := s.Progress()
		s.Sprite.SetPosition(s.Pos)
		s.Sprite.SetAlpha(ShooterAlpha(t))
		s.Sprite.SetScale(1+t*shooterStretch, 1)

		if s.Life >= s.MaxLife || offscreen(s.Pos, screen) {
			s.Sprite.Destroy()
			continue
		}
		kept = append(kept, s)
	}
	clear(ss.Active[len(kept):])
	ss.Active = kept
}

// Spawn launches a streak from a random screen edge heading inward.
func (ss *ShootingStars) Spawn(screen Rect) *Shooter {
	jitter := ss.rng.Float64()*2*shooterJitter - shooterJitter
	var pos r2.Vec
	var angle float64
	switch ss.rng.IntN(4) {
	case 0:
		pos = r2.Vec{X: ss.rng.Float64() * screen.W, Y: -shooterEdgeInset}
		angle = math.Pi/2 + jitter
	case 1:
		pos = r2.Vec{X: screen.W + shooterEdgeInset, Y: ss.rng.Float64() * screen.H * 0.6}
		angle = math.Pi + jitter
	case 2:
		pos = r2.Vec{X: screen.W * (0.4 + ss.rng.Float64()*0.6), Y: screen.H + shooterEdgeInset}
		angle = -math.Pi/2 + jitter
	default:
		pos = r2.Vec{X: -shooterEdgeInset, Y: screen.H * (0.4 + ss.rng.Float64()*0.6)}
		angle = jitter
	}

	speed := shooterMinSpeed + ss.rng.Float64()*shooterSpeedSpan
	s := &Shooter{
		Sprite:  ss.scene.NewSprite(ss.tex),
		Pos:     pos,
		Vel:     r2.Vec{X: math.Cos(angle) * speed, Y: math.Sin(angle) * speed},
		MaxLife: shooterMinLife + ss.rng.Float64()*shooterLifeSpan,
	}
	s.Sprite.SetAlpha(0)
	s.Sprite.SetAnchor(0, 0.5)
	s.Sprite.SetRotation(angle)
	s.Sprite.SetPosition(pos)
	ss.Container.AddChild(s.Sprite)

	ss.Active = append(ss.Active, s)
	ss.spawned++
	return s
}

// Clear destroys every active streak.
func (ss *ShootingStars) Clear() {
	for _, s := range ss.Active {
		s.Sprite.Destroy()
	}
	ss.Active = nil
}

func offscreen(p r2.Vec, screen Rect) bool {
	return p.X < -shooterMargin || p.Y < -shooterMargin ||
		p.X > screen.W+shooterMargin || p.Y > screen.H+shooterMargin
}
