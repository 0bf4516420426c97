package formatter

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/cosmic/internal/galaxy"
)

// GenreCount is the number of nodes drawn in one genre color.
type GenreCount struct {
	Genre string `json:"genre"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// GalaxyStats summarizes a similarity graph.
type GalaxyStats struct {
	Artists    int            `json:"artists"`
	Edges      int            `json:"edges"`
	Isolated   int            `json:"isolated"`
	MeanDegree float64        `json:"meanDegree"`
	Genres     []GenreCount   `json:"genres"`
	Strongest  []galaxy.Edge  `json:"strongest"`
	Hubs       []ArtistDegree `json:"hubs"`
}

// ArtistDegree pairs an artist name with its number of links.
type ArtistDegree struct {
	Name   string `json:"name"`
	Degree int    `json:"degree"`
}

// genreName returns the table keyword for c, or "other".
func genreName(c galaxy.Color) string {
	for _, gc := range galaxy.GenreColors {
		if gc.Color == c {
			return gc.Genre
		}
	}
	return "other"
}

// DefaultTop is the length of the hub and edge lists when Stats is given no limit.
const DefaultTop = 5

// Stats computes the summary of g, keeping the top strongest edges and best connected artists.
func Stats(g *galaxy.Graph, top int) GalaxyStats {
	if top <= 0 {
		top = DefaultTop
	}
	s := GalaxyStats{
		Artists:   len(g.Nodes),
		Edges:     len(g.Edges),
		Genres:    []GenreCount{},
		Strongest: []galaxy.Edge{},
		Hubs:      []ArtistDegree{},
	}
	if s.Artists == 0 {
		return s
	}
	s.MeanDegree = 2 * float64(s.Edges) / float64(s.Artists)

	counts := make(map[galaxy.Color]int)
	for _, n := range g.Nodes {
		counts[n.Color]++
		if d := g.Degree(n.ID()); d == 0 {
			s.Isolated++
		} else {
			s.Hubs = append(s.Hubs, ArtistDegree{Name: n.Artist.Name, Degree: d})
		}
	}
	for c, n := range counts {
		s.Genres = append(s.Genres, GenreCount{Genre: genreName(c), Color: c.Hex(), Count: n})
	}
	slices.SortFunc(s.Genres, func(a, b GenreCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), strings.Compare(a.Genre, b.Genre))
	})

	slices.SortStableFunc(s.Hubs, func(a, b ArtistDegree) int { return cmp.Compare(b.Degree, a.Degree) })
	s.Hubs = s.Hubs[:min(top, len(s.Hubs))]

	s.Strongest = append(s.Strongest, g.Edges...)
	slices.SortStableFunc(s.Strongest, func(a, b galaxy.Edge) int { return cmp.Compare(b.Weight, a.Weight) })
	s.Strongest = s.Strongest[:min(top, len(s.Strongest))]

	return s
}

// ExportStats renders stats as plain text. names maps artist ids to display names for the edge list.
func ExportStats(s GalaxyStats, names map[string]string) []byte {
	var buf bytes.Buffer
	name := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	fmt.Fprintf(&buf, "Artists: %d\n", s.Artists)
	fmt.Fprintf(&buf, "Links: %d (mean degree %.2f, %d isolated)\n", s.Edges, s.MeanDegree, s.Isolated)

	if len(s.Genres) > 0 {
		buf.WriteString("\nGenres:\n")
		for _, g := range s.Genres {
			fmt.Fprintf(&buf, "  %-20s %s %d\n", g.Genre, g.Color, g.Count)
		}
	}
	if len(s.Hubs) > 0 {
		buf.WriteString("\nMost connected:\n")
		for _, h := range s.Hubs {
			fmt.Fprintf(&buf, "  %s (%d)\n", h.Name, h.Degree)
		}
	}
	if len(s.Strongest) > 0 {
		buf.WriteString("\nStrongest links:\n")
		for _, e := range s.Strongest {
			fmt.Fprintf(&buf, "  %s <-> %s %.2f\n", name(e.Source), name(e.Target), e.Weight)
		}
	}
	return buf.Bytes()
}
