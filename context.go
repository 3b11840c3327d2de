package shatter

import "reflect"

// HandlerFunc is the terminal handler shape. Parameter models declared in
// the route signature are materialized into the CallCtx before the handler
// runs; Get retrieves them by type.
type HandlerFunc func(ctx *CallCtx) (*Response, error)

// CallNext invokes the rest of the middleware chain. Middleware receives it
// explicitly; the terminal dispatcher strips any CallNext stored in the
// context before the handler runs, so handlers never see it.
type CallNext func(ctx *CallCtx) (*Response, error)

// CallCtx is the per-request bag carrying the inbound request and in-flight
// chain state. Values are keyed by their dynamic type. A CallCtx is owned
// exclusively by its request's execution and never shared.
type CallCtx struct {
	req     *RequestCtx
	objects map[reflect.Type]any
}

// NewCallCtx builds a fresh call context around an inbound request.
func NewCallCtx(req *RequestCtx) *CallCtx {
	c := &CallCtx{
		req:     req,
		objects: make(map[reflect.Type]any),
	}
	if req != nil {
		c.Provide(req)
	}
	return c
}

// Request returns the inbound request context.
func (c *CallCtx) Request() *RequestCtx { return c.req }

// Provide stores a value in the bag, keyed by its dynamic type. A later
// Provide of the same type replaces the earlier value.
func (c *CallCtx) Provide(v any) {
	if v == nil {
		return
	}
	c.objects[reflect.TypeOf(v)] = v
}

func (c *CallCtx) get(t reflect.Type) (any, bool) {
	v, ok := c.objects[t]
	return v, ok
}

func (c *CallCtx) remove(t reflect.Type) {
	delete(c.objects, t)
}

// Get retrieves a typed value from the call context.
func Get[T any](c *CallCtx) (T, bool) {
	v, ok := c.objects[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// RouteInfo identifies the endpoint serving the current call. The dispatcher
// provides it into every CallCtx for middleware such as the request logger.
type RouteInfo struct {
	Path       string
	Method     string
	Descriptor string
}
