package tree

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Node {
	return Div("w-full").Child(
		H1("Brand", "text-xl font-bold"),
		Input("border").Attr("placeholder", "Search").Attr("value", `a"b`).On(EventInput, "SearchTyped"),
		Button("btn").SetText("Go <now>").On(EventClick, "Increment"),
		nil,
	)
}

func TestClassSplitsTokens(t *testing.T) {
	n := Div("a b", "c")
	assert.Equal(t, []string{"a", "b", "c"}, n.Classes)
	assert.True(t, n.HasClass("b"))
	assert.False(t, n.HasClass("d"))
}

func TestChildSkipsNil(t *testing.T) {
	assert.Len(t, sample().Children, 3)
}

func TestFindAndText(t *testing.T) {
	root := sample()

	btn := root.Find(ByTag("button"))
	require.NotNil(t, btn)
	b, ok := btn.Binding(EventClick)
	require.True(t, ok)
	assert.Equal(t, "Increment", b.Emit)

	_, ok = btn.Binding(EventInput)
	assert.False(t, ok)

	assert.Equal(t, "BrandGo <now>", root.TextContent())
	assert.Len(t, root.FindAll(ByClass("font-bold")), 1)
	assert.NotNil(t, root.Find(ByAttr("placeholder", "Search")))
	assert.Nil(t, root.Find(ByTag("table")))
}

func TestWalkSkipsChildren(t *testing.T) {
	var tags []string
	sample().Walk(func(n *Node) bool {
		tags = append(tags, n.Tag)
		return n.Tag != "div"
	})
	assert.Equal(t, []string{"div"}, tags)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(sample(), sample()))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(sample(), nil))

	other := sample()
	other.Children[1].Attrs["value"] = "x"
	assert.False(t, Equal(sample(), other))

	other = sample()
	other.Children[2].Bindings[0].Emit = "Other"
	assert.False(t, Equal(sample(), other))
}

func TestJSONRoundTripKeepsEquality(t *testing.T) {
	data, err := json.Marshal(sample())
	require.NoError(t, err)

	var back Node
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(sample(), &back))
}

func TestHTMLEscapesAndOrdersAttrs(t *testing.T) {
	out := HTML(sample())

	assert.True(t, strings.HasPrefix(out, `<div class="w-full">`))
	assert.Contains(t, out, `<input class="border" placeholder="Search" value="a&#34;b" data-on-input="SearchTyped">`)
	assert.NotContains(t, out, "</input>")
	assert.Contains(t, out, `<button class="btn" data-on-click="Increment">Go &lt;now&gt;</button>`)
	assert.True(t, strings.HasSuffix(out, "</div>"))
}

func TestTextNodeRendersBare(t *testing.T) {
	n := A("#", "").Child(I("w-4"), Text("Item & 1"))
	assert.Equal(t, `<a href="#"><i class="w-4"></i>Item &amp; 1</a>`, HTML(n))
	assert.Equal(t, "Item & 1", n.TextContent())
}

func TestPageWrapsTree(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Page("Rust Academy", sample()).Render(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, "<title>Rust Academy</title>")
	assert.Contains(t, out, `<div id="app">`+HTML(sample())+`</div>`)
	assert.Contains(t, out, "/api/events")
}

func TestPageScriptPostsInOrder(t *testing.T) {
	// Every binding and key press goes through the one chained send.
	assert.Equal(t, 1, strings.Count(pageScript, "fetch(\"/api/events\""))
	assert.Contains(t, pageScript, "outbox = outbox.catch(function () {}).then(")
}

func TestComponentMatchesHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Component(sample()).Render(context.Background(), &buf))
	assert.Equal(t, HTML(sample()), buf.String())
}
