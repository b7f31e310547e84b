package tui

import (
	"strconv"
	"strings"

	"github.com/rustacademy/academy/internal/app"
	"github.com/rustacademy/academy/internal/tree"
)

// pageView is the terminal reading of a rendered tree. It only extracts what
// the tree says; all decisions about content stay with the view builder.
type pageView struct {
	Sidebar sidebarView
	Nav     navView
	Cards   []cardView
}

type sidebarView struct {
	Brand    string
	Sections []sectionView
}

type sectionView struct {
	Title     string
	Collapsed bool
	Items     []string
}

type navView struct {
	Placeholder string
	Value       string
	SearchEmit  string
	Buttons     []string
}

type cardView struct {
	Title       string
	Description string
	Price       uint64
	PriceLabel  string
	Buttons     []buttonView
}

type buttonView struct {
	Label string
	Emit  string
}

func readPage(root *tree.Node) pageView {
	if root == nil {
		return pageView{}
	}
	return pageView{
		Sidebar: readSidebar(root.Find(tree.ByTag("aside"))),
		Nav:     readNav(root.Find(tree.ByTag("nav"))),
		Cards:   readCards(root),
	}
}

func readSidebar(aside *tree.Node) sidebarView {
	var sv sidebarView
	if aside == nil {
		return sv
	}
	sv.Brand = strings.TrimSpace(aside.Find(tree.ByTag("h1")).TextContent())
	for _, sec := range aside.FindAll(tree.ByClass(app.ClassSection)) {
		s := sectionView{
			Title:     strings.TrimSpace(sec.Find(tree.ByTag("span")).TextContent()),
			Collapsed: sec.Find(tree.ByClass("fa-chevron-right")) != nil,
		}
		for _, li := range sec.FindAll(tree.ByTag("li")) {
			s.Items = append(s.Items, strings.TrimSpace(li.TextContent()))
		}
		sv.Sections = append(sv.Sections, s)
	}
	return sv
}

func readNav(nav *tree.Node) navView {
	var nv navView
	if nav == nil {
		return nv
	}
	if input := nav.Find(tree.ByClass(app.ClassSearch)); input != nil {
		nv.Placeholder = input.Attrs["placeholder"]
		nv.Value = input.Attrs["value"]
		if b, ok := input.Binding(tree.EventInput); ok {
			nv.SearchEmit = b.Emit
		}
	}
	for _, a := range nav.FindAll(tree.ByTag("a")) {
		nv.Buttons = append(nv.Buttons, strings.TrimSpace(a.TextContent()))
	}
	return nv
}

func readCards(root *tree.Node) []cardView {
	nodes := root.FindAll(tree.ByClass(app.ClassCard))
	cards := make([]cardView, 0, len(nodes))
	for _, n := range nodes {
		c := cardView{
			Title:       strings.TrimSpace(n.Find(tree.ByClass(app.ClassCardTitle)).TextContent()),
			Description: strings.TrimSpace(n.Find(tree.ByTag("p")).TextContent()),
			PriceLabel:  strings.TrimSpace(n.Find(tree.ByClass(app.ClassCardPrice)).TextContent()),
		}
		if p, err := strconv.ParseUint(n.Attrs[app.AttrPrice], 10, 64); err == nil {
			c.Price = p
		}
		for _, b := range n.FindAll(tree.ByTag("button")) {
			bv := buttonView{Label: strings.TrimSpace(b.TextContent())}
			if binding, ok := b.Binding(tree.EventClick); ok {
				bv.Emit = binding.Emit
			}
			c.Buttons = append(c.Buttons, bv)
		}
		cards = append(cards, c)
	}
	return cards
}
