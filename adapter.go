package shatter

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// adapter turns wire requests into RequestCtx values and serializes the
// dispatched Response back onto the wire. Routing-prefix stripping happens
// here; the core itself does no URL parsing.
type adapter struct {
	mapping *BoundMapping
	prefix  string
	logger  *slog.Logger
}

// AdapterOption configures the HTTP adapter.
type AdapterOption func(*adapter)

// WithPrefix strips a routing prefix before dispatch.
func WithPrefix(prefix string) AdapterOption {
	return func(a *adapter) {
		a.prefix = strings.TrimSuffix(prefix, "/")
	}
}

// WithLogger sets the logger used for server faults.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *adapter) {
		a.logger = logger
	}
}

// NewHandler adapts a bound mapping onto net/http. Dispatch errors —
// including PathNotFoundError, which signals a descriptor/implementation
// mismatch rather than a client mistake — are rendered as 500 and logged.
func NewHandler(mapping *BoundMapping, opts ...AdapterOption) http.Handler {
	a := &adapter{
		mapping: mapping,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if a.prefix != "" {
		// The prefix must end at a segment boundary: /api matches /api and
		// /api/x, never /apix.
		rest, ok := strings.CutPrefix(path, a.prefix)
		if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
			http.NotFound(w, r)
			return
		}
		path = rest
	}
	if path == "" {
		path = "/"
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	req := &RequestCtx{
		Body:    body,
		Headers: headers,
		Query:   r.URL.Query(),
		Remote:  r.RemoteAddr,
	}

	resp, err := a.mapping.Dispatch(path, req)
	if err != nil {
		a.logger.Error("dispatch failed",
			"path", path,
			"method", r.Method,
			"err", err,
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	payload, err := resp.Body()
	if err != nil {
		a.logger.Error("response serialization failed", "path", path, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	for k, v := range resp.Headers() {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode())
	//nolint:errcheck,gosec // best-effort after WriteHeader
	io.WriteString(w, payload)
}
