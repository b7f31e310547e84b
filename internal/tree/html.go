package tree

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// voidElements never carry children or a closing tag.
var voidElements = map[string]bool{
	"input": true,
	"br":    true,
	"hr":    true,
	"img":   true,
	"meta":  true,
	"link":  true,
}

// BindingAttr is the attribute prefix hosts look for to wire events.
const BindingAttr = "data-on-"

// Component renders the tree as HTML.
func Component(n *Node) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		writeNode(&sb, n)
		_, err := io.WriteString(w, sb.String())
		return err
	})
}

// HTML renders the tree into a string.
func HTML(n *Node) string {
	var sb strings.Builder
	writeNode(&sb, n)
	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	if n.Tag == TextTag {
		sb.WriteString(templ.EscapeString(n.Text))
		return
	}
	sb.WriteString("<")
	sb.WriteString(n.Tag)
	if len(n.Classes) > 0 {
		sb.WriteString(` class="`)
		sb.WriteString(templ.EscapeString(strings.Join(n.Classes, " ")))
		sb.WriteString(`"`)
	}
	for _, k := range n.sortedAttrKeys() {
		sb.WriteString(" ")
		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(templ.EscapeString(n.Attrs[k]))
		sb.WriteString(`"`)
	}
	for _, b := range n.Bindings {
		sb.WriteString(" ")
		sb.WriteString(BindingAttr)
		sb.WriteString(b.Event)
		sb.WriteString(`="`)
		sb.WriteString(templ.EscapeString(b.Emit))
		sb.WriteString(`"`)
	}
	sb.WriteString(">")
	if voidElements[n.Tag] {
		return
	}
	sb.WriteString(templ.EscapeString(n.Text))
	for _, c := range n.Children {
		writeNode(sb, c)
	}
	sb.WriteString("</")
	sb.WriteString(n.Tag)
	sb.WriteString(">")
}

// pageScript posts fired bindings back to the event endpoint and reloads
// the body from the returned tree revision. Posts are chained so events
// reach the service in the order they fired.
const pageScript = `<script>
(function () {
  var outbox = Promise.resolve();
  function send(name, payload) {
    outbox = outbox.catch(function () {}).then(function () {
      return fetch("/api/events", {
        method: "POST",
        headers: {"Content-Type": "application/json"},
        body: JSON.stringify({name: name, payload: payload})
      });
    });
    return outbox;
  }
  function refresh() {
    fetch("/").then(function (r) { return r.text(); }).then(function (html) {
      var doc = new DOMParser().parseFromString(html, "text/html");
      var focused = document.activeElement && document.activeElement.tagName === "INPUT";
      if (!focused) { document.getElementById("app").replaceWith(doc.getElementById("app")); }
    });
  }
  document.addEventListener("click", function (e) {
    var el = e.target.closest("[data-on-click]");
    if (!el) { return; }
    e.preventDefault();
    send(el.getAttribute("data-on-click")).then(refresh);
  });
  document.addEventListener("input", function (e) {
    var el = e.target.closest("[data-on-input]");
    if (!el) { return; }
    send(el.getAttribute("data-on-input"), el.value).then(refresh);
  });
  document.addEventListener("keydown", function (e) {
    send("KeyPressed", e.key);
  });
  setInterval(refresh, 1000);
})();
</script>`

// Page wraps the tree in a full HTML document.
func Page(title string, n *Node) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
		sb.WriteString(templ.EscapeString(title))
		sb.WriteString(`</title><link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/4.7.0/css/font-awesome.min.css">`)
		sb.WriteString(`</head><body><div id="app">`)
		writeNode(&sb, n)
		sb.WriteString("</div>")
		sb.WriteString(pageScript)
		sb.WriteString("</body></html>")
		_, err := io.WriteString(w, sb.String())
		return err
	})
}
