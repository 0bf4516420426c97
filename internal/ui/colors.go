package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/desertthunder/cosmic/internal/galaxy"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// space is the terminal background the scene is composited onto.
var space = toColorful(galaxy.Background)

// toColorful converts a scene color to a [colorful.Color].
func toColorful(c galaxy.Color) colorful.Color {
	r, g, b := c.RGB()
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// over composites c at alpha onto dst.
func over(dst colorful.Color, c galaxy.Color, alpha float64) colorful.Color {
	return dst.BlendRgb(toColorful(c), clamp01(alpha)).Clamped()
}

// add lights dst with c scaled by alpha.
func add(dst colorful.Color, c galaxy.Color, alpha float64) colorful.Color {
	src := toColorful(c)
	a := clamp01(alpha)
	return colorful.Color{R: dst.R + src.R*a, G: dst.G + src.G*a, B: dst.B + src.B*a}.Clamped()
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
