// Package tree provides the declarative UI tree produced by the view builder
// and consumed by the hosts (HTML page, terminal client, JSON API).
//
// A tree is data only: tags, class tokens, attributes, text or children, and
// bindings that name the message an event should produce. Hosts translate a
// fired binding back into a message through the event boundary, so a tree can
// be compared, serialized and shipped across processes.
package tree

import (
	"sort"
	"strings"
)

// Event names understood by hosts.
const (
	EventClick = "click"
	EventInput = "input"
)

// Binding attaches a message to a DOM-style event on a node.
// For input events the host supplies the current field value as payload.
type Binding struct {
	Event string `json:"event" msgpack:"event"`
	Emit  string `json:"emit" msgpack:"emit"`
}

// Node is one element of the UI tree.
type Node struct {
	Tag      string            `json:"tag"`
	Classes  []string          `json:"classes,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Children []*Node           `json:"children,omitempty"`
	Bindings []Binding         `json:"bindings,omitempty"`
}

// El creates a node with the given tag.
func El(tag string) *Node {
	return &Node{Tag: tag}
}

// Class appends class tokens. Each argument may hold several space separated tokens.
func (n *Node) Class(classes ...string) *Node {
	for _, c := range classes {
		n.Classes = append(n.Classes, strings.Fields(c)...)
	}
	return n
}

// Attr sets an attribute and returns the node for chaining.
func (n *Node) Attr(k, v string) *Node {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[k] = v
	return n
}

// SetText sets the text content.
func (n *Node) SetText(s string) *Node {
	n.Text = s
	return n
}

// Child appends children, skipping nil entries.
func (n *Node) Child(children ...*Node) *Node {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// On binds event to the named message.
func (n *Node) On(event, emit string) *Node {
	n.Bindings = append(n.Bindings, Binding{Event: event, Emit: emit})
	return n
}

// HasClass reports whether the node carries the class token.
func (n *Node) HasClass(class string) bool {
	for _, c := range n.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Binding returns the binding for event, if any.
func (n *Node) Binding(event string) (Binding, bool) {
	for _, b := range n.Bindings {
		if b.Event == event {
			return b, true
		}
	}
	return Binding{}, false
}

// Walk visits n and its descendants depth-first in document order.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// FindAll returns every node matching pred in document order.
func (n *Node) FindAll(pred func(*Node) bool) []*Node {
	var out []*Node
	n.Walk(func(x *Node) bool {
		if pred(x) {
			out = append(out, x)
		}
		return true
	})
	return out
}

// Find returns the first node matching pred.
func (n *Node) Find(pred func(*Node) bool) *Node {
	if found := n.FindAll(pred); len(found) > 0 {
		return found[0]
	}
	return nil
}

// TextContent concatenates the text of n and its descendants.
func (n *Node) TextContent() string {
	var b strings.Builder
	n.Walk(func(x *Node) bool {
		b.WriteString(x.Text)
		return true
	})
	return b.String()
}

// ByClass matches nodes carrying class.
func ByClass(class string) func(*Node) bool {
	return func(n *Node) bool { return n.HasClass(class) }
}

// ByTag matches nodes with the given tag.
func ByTag(tag string) func(*Node) bool {
	return func(n *Node) bool { return n.Tag == tag }
}

// ByAttr matches nodes whose attribute k equals v.
func ByAttr(k, v string) func(*Node) bool {
	return func(n *Node) bool { return n.Attrs[k] == v }
}

// Equal reports whether two trees are structurally identical.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Tag != b.Tag || a.Text != b.Text {
		return false
	}
	if len(a.Classes) != len(b.Classes) || len(a.Attrs) != len(b.Attrs) ||
		len(a.Children) != len(b.Children) || len(a.Bindings) != len(b.Bindings) {
		return false
	}
	for i := range a.Classes {
		if a.Classes[i] != b.Classes[i] {
			return false
		}
	}
	for k, v := range a.Attrs {
		if bv, ok := b.Attrs[k]; !ok || bv != v {
			return false
		}
	}
	for i := range a.Bindings {
		if a.Bindings[i] != b.Bindings[i] {
			return false
		}
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// sortedAttrKeys returns attribute names in stable order for rendering.
func (n *Node) sortedAttrKeys() []string {
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
