package transform

import (
	"bytes"
	"context"

	"github.com/conneroisu/devserve/internal/logging"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLInjector appends a script to the body of HTML documents produced by
// the wrapped adapter.
type HTMLInjector struct {
	next   Adapter
	script string
	logger logging.Logger
}

// NewHTMLInjector wraps next so its documents carry script.
func NewHTMLInjector(next Adapter, script string, logger logging.Logger) *HTMLInjector {
	return &HTMLInjector{next: next, script: script, logger: logger.WithComponent("transform")}
}

// Transform reads the document and injects the script. Documents that cannot
// be parsed are returned unmodified.
func (h *HTMLInjector) Transform(ctx context.Context, path string) ([]byte, error) {
	content, err := h.next.Transform(ctx, path)
	if err != nil {
		return nil, err
	}

	injected, err := InjectScript(content, h.script)
	if err != nil {
		h.logger.Warn(ctx, err, "Serving document without reload script", "path", path)
		return content, nil
	}
	return injected, nil
}

// InjectScript parses doc and appends an inline script element to its body.
func InjectScript(doc []byte, script string) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}

	body := findElement(root, atom.Body)
	if body == nil {
		// html.Parse always synthesizes a body; this only guards odd fragments.
		body = root
	}

	el := &html.Node{Type: html.ElementNode, DataAtom: atom.Script, Data: "script"}
	el.AppendChild(&html.Node{Type: html.TextNode, Data: script})
	body.AppendChild(el)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
