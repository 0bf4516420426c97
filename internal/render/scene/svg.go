package scene

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strings"

	svg "github.com/ajstarks/svgo/float"

	"github.com/desertthunder/cosmic/internal/galaxy"
	"github.com/desertthunder/cosmic/internal/render"
)

// Capture writes the current frame as an SVG document.
func (s *Stage) Capture(w io.Writer) error {
	bw := bufio.NewWriter(w)
	canvas := svg.New(bw)
	canvas.Decimals = 1

	canvas.Start(s.screen.W, s.screen.H)
	canvas.Title("cosmic")

	blurs := make(map[float64]string)
	var glows []Primitive
	seen := make(map[string]struct{})
	var prims []Primitive
	s.Walk(func(p Primitive) {
		if p.Blur > 0 {
			key := math.Round(p.Blur)
			if _, ok := blurs[key]; !ok {
				blurs[key] = fmt.Sprintf("blur%d", len(blurs))
			}
		}
		if p.Kind == KindSprite && p.Texture.Kind == render.TextureGlow {
			id := gradientID(p)
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				glows = append(glows, p)
			}
		}
		prims = append(prims, p)
	})

	canvas.Def()
	for _, g := range glows {
		canvas.RadialGradient(gradientID(g), 50, 50, 50, 50, 50, []svg.Offcolor{
			{Offset: 0, Color: g.Color.Hex(), Opacity: 1},
			{Offset: 100, Color: g.Color.Hex(), Opacity: 0},
		})
	}
	for _, std := range slices.Sorted(maps.Keys(blurs)) {
		canvas.Filter(blurs[std], `x="-50%" y="-50%" width="200%" height="200%"`)
		canvas.FeGaussianBlur(svg.Filterspec{In: "SourceGraphic"}, std/2, std/2)
		canvas.Fend()
	}
	canvas.DefEnd()

	canvas.Rect(0, 0, s.screen.W, s.screen.H, "fill:"+galaxy.Background.Hex())
	for _, p := range prims {
		drawPrimitive(canvas, p, blurs)
	}

	canvas.End()
	return bw.Flush()
}

func drawPrimitive(canvas *svg.SVG, p Primitive, blurs map[float64]string) {
	var attrs []string
	if p.Blur > 0 {
		attrs = append(attrs, fmt.Sprintf(`filter="url(#%s)"`, blurs[math.Round(p.Blur)]))
	}

	switch p.Kind {
	case KindCircle:
		canvas.Circle(p.Center.X, p.Center.Y, p.Radius, append([]string{fill(p)}, attrs...)...)
	case KindLine:
		st := fmt.Sprintf("stroke:%s;stroke-opacity:%.3f;stroke-width:%.2f;stroke-linecap:round%s",
			p.Color.Hex(), p.Alpha, p.Width, blend(p.Blend))
		canvas.Line(p.From.X, p.From.Y, p.To.X, p.To.Y, append([]string{st}, attrs...)...)
	case KindSprite:
		drawSprite(canvas, p, attrs)
	case KindText:
		anchor := "start"
		switch {
		case p.AnchorX >= 0.75:
			anchor = "end"
		case p.AnchorX >= 0.25:
			anchor = "middle"
		}
		weight := "normal"
		if p.Bold {
			weight = "bold"
		}
		st := fmt.Sprintf("%s;font-family:%s;font-size:%.1fpx;font-weight:%s;text-anchor:%s",
			fill(p), p.Family, p.FontSize, weight, anchor)
		canvas.Text(p.Center.X, p.Center.Y, p.Text, append([]string{st}, attrs...)...)
	}
}

func drawSprite(canvas *svg.SVG, p Primitive, attrs []string) {
	switch p.Texture.Kind {
	case render.TextureGlow:
		st := fmt.Sprintf("fill:url(#%s);opacity:%.3f%s", gradientID(p), p.Alpha, blend(p.Blend))
		canvas.Ellipse(p.Center.X, p.Center.Y, p.Width/2, p.Height/2, append([]string{st}, attrs...)...)
	case render.TextureDot:
		canvas.Circle(p.Center.X, p.Center.Y, p.Radius, append([]string{fill(p)}, attrs...)...)
	case render.TextureStreak:
		deg := p.Rotation * 180 / math.Pi
		canvas.Gtransform(fmt.Sprintf("translate(%.1f,%.1f) rotate(%.2f)", p.Center.X, p.Center.Y, deg))
		canvas.Roundrect(-p.Width/2, -p.Height/2, p.Width, p.Height, p.Radius, p.Radius, append([]string{fill(p)}, attrs...)...)
		canvas.Gend()
	}
}

// gradientID names the glow gradient of one tint; each tint needs its own stop colors.
func gradientID(p Primitive) string {
	return fmt.Sprintf("%s-%06x", p.TextureID, uint32(p.Color))
}

func fill(p Primitive) string {
	return fmt.Sprintf("fill:%s;fill-opacity:%.3f%s", p.Color.Hex(), p.Alpha, blend(p.Blend))
}

func blend(mode render.BlendMode) string {
	if mode == render.BlendAdd {
		return ";mix-blend-mode:screen"
	}
	return ""
}

// SVGString captures the frame into a string. Errors cannot occur when writing to memory.
func (s *Stage) SVGString() string {
	var b strings.Builder
	_ = s.Capture(&b)
	return b.String()
}
