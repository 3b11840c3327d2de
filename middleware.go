package shatter

import "reflect"

// Middleware wraps a call: it may inspect or transform the context, invoke
// next zero or more times (normally exactly once), and transform the
// resulting response. Within one declaration list the first-declared
// middleware is outermost; route-level middleware wraps descriptor-level
// middleware.
type Middleware interface {
	Handle(ctx *CallCtx, next CallNext) (*Response, error)
}

// MiddlewareFunc adapts a plain function to the Middleware interface.
type MiddlewareFunc func(ctx *CallCtx, next CallNext) (*Response, error)

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx *CallCtx, next CallNext) (*Response, error) {
	return f(ctx, next)
}

// Expander is optionally implemented by composite middleware that expands
// into an ordered list of middleware.
type Expander interface {
	Expand() []Middleware
}

// expandMiddleware flattens composite middleware depth first, preserving
// declaration order.
func expandMiddleware(mws []Middleware) []Middleware {
	var out []Middleware
	for _, mw := range mws {
		if mw == nil {
			continue
		}
		if ex, ok := mw.(Expander); ok {
			out = append(out, expandMiddleware(ex.Expand())...)
			continue
		}
		out = append(out, mw)
	}
	return out
}

// dedupeMiddleware removes duplicates by identity, keeping the first
// occurrence. Middleware of an uncomparable dynamic type is kept as-is.
func dedupeMiddleware(mws []Middleware) []Middleware {
	seen := make(map[Middleware]struct{}, len(mws))
	out := make([]Middleware, 0, len(mws))
	for _, mw := range mws {
		if mw == nil {
			continue
		}
		if !reflect.TypeOf(mw).Comparable() {
			out = append(out, mw)
			continue
		}
		if _, ok := seen[mw]; ok {
			continue
		}
		seen[mw] = struct{}{}
		out = append(out, mw)
	}
	return out
}
