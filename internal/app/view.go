package app

import (
	"fmt"
	"strconv"

	"github.com/rustacademy/academy/internal/catalog"
	"github.com/rustacademy/academy/internal/tree"
)

// Brand is the sidebar heading.
const Brand = "Rust Academy"

// SearchPlaceholder is the search field hint.
const SearchPlaceholder = "Search courses"

// NoDescription replaces an empty course description.
const NoDescription = "No description"

// Class names hosts use to locate regions of the tree.
const (
	ClassCard       = "course-card"
	ClassCardTitle  = "course-title"
	ClassCardPrice  = "course-price"
	ClassSearch     = "search-input"
	ClassSection    = "sidebar-section"
	ClassCardsPanel = "course-cards"
)

// AttrPrice carries the numeric course price on each card.
const AttrPrice = "data-price"

type sidebarSection struct {
	title     string
	icon      string
	collapsed bool
}

var sidebarSections = []sidebarSection{
	{title: "Courses", icon: "book"},
	{title: "Lists", icon: "address-book"},
	{title: "Repositories", icon: "address-book"},
}

var sidebarItems = []string{"Item 1", "Item 2"}

// View renders the full page tree for s.
func View(s State) *tree.Node {
	courses := catalog.Filter(catalog.Courses(), s.SearchText)

	cards := tree.Div("flex justify-between", ClassCardsPanel)
	for _, c := range courses {
		cards.Child(card(c))
	}

	return tree.Div("w-full").Child(
		tree.Div("flex").Child(
			tree.Div("flex-none w-64").Child(sideBar()),
			tree.Div("flex-grow").Child(
				navBar(s.SearchText),
				tree.Div("pt-8 px-8").Child(cards),
			),
		),
	)
}

func button(name string) *tree.Node {
	return tree.Button("mx-1 py-2 px-4 text-white font-bold border-b-2 bg-green-500 border-green-700 rounded-lg hover:bg-green-400 hover:border-green-400").
		Attr("href", "#").
		SetText(name).
		On(tree.EventClick, NameIncrement)
}

func card(c catalog.Course) *tree.Node {
	desc := tree.P().SetText(c.Description)
	if c.Description == "" {
		desc = tree.P().SetText(NoDescription)
	}
	return tree.Div("w-full flex flex-col justify-center m-2 px-4 border rounded rounded-l-lg border-l-4 border-gray-400 shadow-lg border-blue-300", ClassCard).
		Attr(AttrPrice, strconv.FormatUint(uint64(c.Price), 10)).
		Child(
			tree.Div("py-2").Child(tree.Span("font-bold text-lg", ClassCardTitle).SetText(c.Title)),
			tree.Div("flex-grow py-2").Child(desc),
			tree.Div("py-1").Child(
				tree.Span("text-sm text-gray-500 font-semibold", ClassCardPrice).SetText(fmt.Sprintf("Price: %d", c.Price)),
			),
			tree.Div("py-2").Child(button("Purchase"), button("Download")),
		)
}

func sideBar() *tree.Node {
	aside := tree.Aside("flex-none w-full h-full border-r shadow-lg bg-gray-800 h-screen").Child(
		tree.H1(Brand, "h-24 text-white tracking-4 uppercase font-bold p-4 text-left text-middle leading-lg text-lg"),
	)
	for _, sec := range sidebarSections {
		aside.Child(sideBarSection(sec))
	}
	return aside
}

func sideBarSection(sec sidebarSection) *tree.Node {
	chevron := "down"
	if sec.collapsed {
		chevron = "right"
	}
	items := tree.Ul("list-none")
	for _, name := range sidebarItems {
		items.Child(tree.Li().Child(
			tree.A("#", "", "block py-2 text-sm pl-5 text-gray-500 select-none hover:bg-gray-900 hover:shadow-lg hover:text-gray-300").
				Child(tree.I("w-4"), tree.Text(name)),
		))
	}
	return tree.Div("m-2 my-3", ClassSection).Child(
		tree.Div("flex items-center font-bold text-gray-500 uppercase pb-2 px-2 tracking-wide cursor-pointer hover:text-white").Child(
			tree.I("flex-none", "fa fa-"+sec.icon),
			tree.Span("flex-grow mx-1 select-none").SetText(sec.title),
			tree.I("flex-none", "fa fa-chevron-"+chevron),
		),
		items,
	)
}

func navBarButton(name string) *tree.Node {
	return tree.A("#", name, "flex-none ml-2 p-3 no-underline rounded-lg bg-gray-200 hover:shadow")
}

func navBar(search string) *tree.Node {
	return tree.Nav("flex justify-between items-center bg-white m-0 p-2 shadow-lg").Child(
		tree.Div("flex-initial w-1/2 mx-auto").Child(
			tree.Input("justify-center w-full border p-2 rounded", ClassSearch).
				Attr("placeholder", SearchPlaceholder).
				Attr("value", search).
				On(tree.EventInput, NameSearchTyped),
		),
		tree.Div("flex items-center").Child(
			navBarButton("Sign In"),
			navBarButton("Sign Out"),
		),
	)
}
