package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/cosmic/internal/galaxy"
)

var (
	_ list.Item = artistItem{}
)

// artistItem wraps a [galaxy.Node] to implement [list.Item].
type artistItem struct {
	node   *galaxy.Node
	degree int
}

func (i artistItem) FilterValue() string { return i.node.Artist.Name }
func (i artistItem) Title() string       { return i.node.Artist.Name }
func (i artistItem) Description() string {
	desc := fmt.Sprintf("popularity %d • %d links", i.node.Artist.Popularity, i.degree)
	if len(i.node.Artist.Genres) > 0 {
		desc = fmt.Sprintf("%s • %s", desc, strings.Join(i.node.Artist.Genres, ", "))
	}
	return desc
}

// artistItems lists the nodes of g in graph order.
func artistItems(g *galaxy.Graph) []list.Item {
	if g == nil {
		return []list.Item{}
	}
	items := make([]list.Item, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		items = append(items, artistItem{node: n, degree: g.Degree(n.ID())})
	}
	return items
}
