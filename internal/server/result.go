package server

import "net/http"

// ResultKind discriminates router outcomes.
type ResultKind int

const (
	// ResultContent carries a body to serve with status 200.
	ResultContent ResultKind = iota
	// ResultNotFound carries a not-found document to serve with status 404.
	ResultNotFound
	// ResultSubscribe hands the request to the reload channel.
	ResultSubscribe
)

// String returns the metric label for the kind.
func (k ResultKind) String() string {
	switch k {
	case ResultContent:
		return "content"
	case ResultNotFound:
		return "not_found"
	case ResultSubscribe:
		return "subscribe"
	default:
		return "unknown"
	}
}

// Result is the outcome of routing one request.
type Result struct {
	Kind ResultKind
	Body []byte
	// ContentType is empty when the HTTP layer should infer it.
	ContentType string
	// Path is the filesystem path the body came from, if any. Used for
	// content-type inference.
	Path string
	ETag string
}

// Status returns the HTTP status for the result.
func (r Result) Status() int {
	if r.Kind == ResultNotFound {
		return http.StatusNotFound
	}
	return http.StatusOK
}
