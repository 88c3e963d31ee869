package server

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

// builtinNotFound is served when neither a directory nor the root provides a
// not-found document.
func builtinNotFound(urlPath string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!doctype html>
<html>
<head><meta charset="utf-8"><title>404 Not Found</title></head>
<body>
<h1>404 Not Found</h1>
<p><code>`+templ.EscapeString(urlPath)+`</code> does not exist in the served directory.</p>
</body>
</html>
`)
		return err
	})
}

func renderComponent(ctx context.Context, c templ.Component) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
