package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/desertthunder/cosmic/internal/galaxy"
	"github.com/desertthunder/cosmic/internal/render"
	"github.com/desertthunder/cosmic/internal/render/scene"
)

// CellWidth and CellHeight are the scene units covered by one terminal cell.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
)

// minAlpha is the faintest glyph still drawn.
const minAlpha = 0.04

// minLabelSize hides labels once the camera has zoomed them below a readable size.
const minLabelSize = 7.0

// Cell is one rasterized terminal cell.
type Cell struct {
	Rune rune
	Fg   colorful.Color
	Bg   colorful.Color
	Bold bool
	// Lit is set once an additive layer has lighted the background.
	Lit bool
}

// Canvas rasterizes flattened scene primitives into terminal cells.
type Canvas struct {
	cols, rows int
	cells      []Cell
}

// NewCanvas creates a canvas of cols by rows cells.
func NewCanvas(cols, rows int) *Canvas {
	c := &Canvas{}
	c.Resize(cols, rows)
	return c
}

// Resize changes the cell grid and clears it.
func (c *Canvas) Resize(cols, rows int) {
	c.cols, c.rows = max(cols, 0), max(rows, 0)
	c.cells = make([]Cell, c.cols*c.rows)
}

// Size returns the grid dimensions in cells.
func (c *Canvas) Size() (cols, rows int) { return c.cols, c.rows }

// Bounds returns the scene size the grid covers.
func (c *Canvas) Bounds() (w, h float64) {
	return float64(c.cols) * CellWidth, float64(c.rows) * CellHeight
}

// Clear empties every cell.
func (c *Canvas) Clear() {
	clear(c.cells)
}

// Cell returns the cell at column x, row y. Out of range cells are empty.
func (c *Canvas) Cell(x, y int) Cell {
	if x < 0 || y < 0 || x >= c.cols || y >= c.rows {
		return Cell{}
	}
	return c.cells[y*c.cols+x]
}

// CellCenter returns the scene point at the middle of a cell.
func CellCenter(x, y int) r2.Vec {
	return r2.Vec{X: (float64(x) + 0.5) * CellWidth, Y: (float64(y) + 0.5) * CellHeight}
}

// Draw clears the canvas and paints every primitive of s back to front.
func (c *Canvas) Draw(s *scene.Stage) {
	c.Clear()
	s.Walk(c.Paint)
}

func (c *Canvas) at(p r2.Vec) (*Cell, bool) {
	x, y := int(math.Floor(p.X/CellWidth)), int(math.Floor(p.Y/CellHeight))
	if x < 0 || y < 0 || x >= c.cols || y >= c.rows {
		return nil, false
	}
	return &c.cells[y*c.cols+x], true
}

func (c *Cell) background() colorful.Color {
	if c.Lit {
		return c.Bg
	}
	return space
}

func (c *Canvas) glyph(p r2.Vec, r rune, color galaxy.Color, alpha float64, bold bool) {
	if alpha < minAlpha {
		return
	}
	cell, ok := c.at(p)
	if !ok {
		return
	}
	cell.Rune = r
	cell.Fg = over(cell.background(), color, alpha)
	cell.Bold = bold
}

func (c *Canvas) light(p r2.Vec, color galaxy.Color, alpha float64) {
	if alpha <= 0 {
		return
	}
	cell, ok := c.at(p)
	if !ok {
		return
	}
	cell.Bg = add(cell.background(), color, alpha)
	cell.Lit = true
}

// cellsWithin calls fn for the center of every cell inside the circle, and for the cell holding
// center when the circle is smaller than a cell.
func (c *Canvas) cellsWithin(center r2.Vec, radius float64, fn func(p r2.Vec, falloff float64)) {
	x0 := int(math.Floor((center.X - radius) / CellWidth))
	x1 := int(math.Floor((center.X + radius) / CellWidth))
	y0 := int(math.Floor((center.Y - radius) / CellHeight))
	y1 := int(math.Floor((center.Y + radius) / CellHeight))

	hit := false
	for y := max(y0, 0); y <= min(y1, c.rows-1); y++ {
		for x := max(x0, 0); x <= min(x1, c.cols-1); x++ {
			p := CellCenter(x, y)
			d := r2.Norm(r2.Sub(p, center))
			if d <= radius {
				hit = true
				fn(p, 1-d/radius)
			}
		}
	}
	if !hit {
		fn(center, 1)
	}
}

// Paint rasterizes one primitive over what is already on the canvas.
func (c *Canvas) Paint(p scene.Primitive) {
	switch p.Kind {
	case scene.KindCircle:
		if p.Blend == render.BlendAdd {
			c.cellsWithin(p.Center, p.Radius+p.Blur, func(q r2.Vec, f float64) { c.light(q, p.Color, p.Alpha*f) })
			return
		}
		c.cellsWithin(p.Center, p.Radius, func(q r2.Vec, _ float64) { c.glyph(q, '█', p.Color, p.Alpha, false) })
	case scene.KindLine:
		c.line(p.From, p.To, '·', p.Color, p.Alpha)
	case scene.KindSprite:
		c.sprite(p)
	case scene.KindText:
		c.text(p)
	}
}

func (c *Canvas) sprite(p scene.Primitive) {
	switch p.Texture.Kind {
	case render.TextureGlow:
		c.cellsWithin(p.Center, p.Width/2, func(q r2.Vec, f float64) { c.light(q, p.Color, p.Alpha*f*f) })
	case render.TextureDot:
		r := '.'
		if p.Alpha > 0.7 {
			r = '*'
		}
		c.glyph(p.Center, r, p.Color, p.Alpha, false)
	case render.TextureStreak:
		dir := r2.Vec{X: math.Cos(p.Rotation), Y: math.Sin(p.Rotation)}
		half := r2.Scale(p.Width/2, dir)
		c.line(r2.Sub(p.Center, half), r2.Add(p.Center, half), slope(dir), p.Color, p.Alpha)
	}
}

// slope picks the box drawing rune closest to the direction d.
func slope(d r2.Vec) rune {
	// Cells are twice as tall as wide, so compare in cell units.
	angle := math.Atan2(d.Y/CellHeight, d.X/CellWidth)
	switch a := math.Mod(angle+2*math.Pi, math.Pi); {
	case a < math.Pi/8 || a >= 7*math.Pi/8:
		return '─'
	case a < 3*math.Pi/8:
		return '╲'
	case a < 5*math.Pi/8:
		return '│'
	default:
		return '╱'
	}
}

func (c *Canvas) line(from, to r2.Vec, r rune, color galaxy.Color, alpha float64) {
	d := r2.Sub(to, from)
	steps := int(math.Ceil(max(math.Abs(d.X)/CellWidth, math.Abs(d.Y)/CellHeight)))
	if steps == 0 {
		c.glyph(from, r, color, alpha, false)
		return
	}
	for i := 0; i <= steps; i++ {
		c.glyph(r2.Add(from, r2.Scale(float64(i)/float64(steps), d)), r, color, alpha, false)
	}
}

func (c *Canvas) text(p scene.Primitive) {
	if p.FontSize < minLabelSize {
		return
	}
	runes := []rune(p.Text)
	width := float64(len(runes)) * CellWidth
	start := r2.Vec{X: p.Center.X - p.AnchorX*width, Y: p.Center.Y - p.FontSize*0.4}
	for i, r := range runes {
		c.glyph(r2.Add(start, r2.Vec{X: (float64(i) + 0.5) * CellWidth}), r, p.Color, p.Alpha, p.Bold)
	}
}

// Plain returns the glyphs without colors, one line per row.
func (c *Canvas) Plain() string {
	var b strings.Builder
	for y := range c.rows {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := range c.cols {
			r := c.cells[y*c.cols+x].Rune
			if r == 0 {
				r = ' '
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

type runStyle struct {
	fg, bg string
	bold   bool
}

func (c *Cell) style() runStyle {
	s := runStyle{bold: c.Bold}
	if c.Rune != 0 {
		s.fg = c.Fg.Hex()
	}
	if c.Lit {
		s.bg = c.Bg.Hex()
	}
	return s
}

func (s runStyle) render(text string) string {
	if s.fg == "" && s.bg == "" {
		return text
	}
	st := lipgloss.NewStyle().Bold(s.bold)
	if s.fg != "" {
		st = st.Foreground(lipgloss.Color(s.fg))
	}
	if s.bg != "" {
		st = st.Background(lipgloss.Color(s.bg))
	}
	return st.Render(text)
}

// Render returns the canvas as styled terminal text. Runs of cells with the same colors share one
// style.
func (c *Canvas) Render() string {
	var b strings.Builder
	var run strings.Builder
	for y := range c.rows {
		if y > 0 {
			b.WriteByte('\n')
		}
		var cur runStyle
		for x := range c.cols {
			cell := &c.cells[y*c.cols+x]
			s := cell.style()
			if x > 0 && s != cur {
				b.WriteString(cur.render(run.String()))
				run.Reset()
			}
			cur = s
			if cell.Rune == 0 {
				run.WriteByte(' ')
			} else {
				run.WriteRune(cell.Rune)
			}
		}
		b.WriteString(cur.render(run.String()))
		run.Reset()
	}
	return b.String()
}
