package tree

// Element shorthands used by the view builder.

func Div(classes ...string) *Node    { return El("div").Class(classes...) }
func Span(classes ...string) *Node   { return El("span").Class(classes...) }
func Aside(classes ...string) *Node  { return El("aside").Class(classes...) }
func Nav(classes ...string) *Node    { return El("nav").Class(classes...) }
func Ul(classes ...string) *Node     { return El("ul").Class(classes...) }
func Li(classes ...string) *Node     { return El("li").Class(classes...) }
func P(classes ...string) *Node      { return El("p").Class(classes...) }
func I(classes ...string) *Node      { return El("i").Class(classes...) }
func Input(classes ...string) *Node  { return El("input").Class(classes...) }
func Button(classes ...string) *Node { return El("button").Class(classes...) }

// TextTag marks a bare text node.
const TextTag = "#text"

// Text creates a bare text node, rendered without an element wrapper.
func Text(s string) *Node { return &Node{Tag: TextTag, Text: s} }

// H1 creates a heading with text.
func H1(text string, classes ...string) *Node {
	return El("h1").Class(classes...).SetText(text)
}

// A creates a link with text and href.
func A(href, text string, classes ...string) *Node {
	return El("a").Class(classes...).Attr("href", href).SetText(text)
}
