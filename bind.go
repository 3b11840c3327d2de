package shatter

import (
	"errors"
	"reflect"
	"sync/atomic"
)

// BoundMapping is the runtime dispatch table of one bound implementation:
// path → executor. It is built once at bind time and read-only afterward, so
// it may be shared across request-handling goroutines freely. Lazily cached
// resolutions inside executors use idempotent compare-and-set writes.
type BoundMapping struct {
	owner *Implementation
	paths map[string]executor
	order []string
}

// Bind resolves every wrapper of the descriptor's registry against this
// implementation and returns the bound mapping. A method with no handler in
// the implementation chain and no default anywhere in the wrapper's base
// chain fails with UnimplementedMethodError; a provided signature that is
// not compatible with the declared one fails with
// IncompatibleImplementationError. Binding is a one-time setup step: the
// result is cached and rebinding returns the same mapping without
// re-wrapping any handler. The cache is an idempotent compare-and-set, so an
// implementation reached from several places — including one produced by an
// extension factory during dispatch — may be bound concurrently; the first
// completed mapping wins and every caller observes it.
func (im *Implementation) Bind() (*BoundMapping, error) {
	if bm := im.bound.Load(); bm != nil {
		return bm, nil
	}
	if im.declErr != nil {
		return nil, &DeclarationError{Descriptor: im.name, Reason: im.declErr.Error()}
	}
	if im.desc == nil {
		return nil, &DeclarationError{Descriptor: im.name, Reason: "implementation has no descriptor"}
	}
	reg, err := im.desc.Registry()
	if err != nil {
		return nil, err
	}

	bm := &BoundMapping{
		owner: im,
		paths: make(map[string]executor),
		order: reg.Paths(),
	}

	for _, method := range reg.Methods() {
		w, _ := reg.Wrapper(method)

		var ex executor
		if w.IsExtension() {
			decl, ok := im.findSubAPI(method)
			if !ok {
				return nil, &UnimplementedMethodError{
					Descriptor: im.desc.name, Implementation: im.name, Method: method,
				}
			}
			ext := &extendedExecutor{wrapper: w, decl: decl, implName: im.name}
			if decl.child != nil {
				if err := checkSubAPI(w, decl.child, im.name); err != nil {
					return nil, err
				}
				// A stable child binds here, during setup, so no request
				// ever triggers a nested bind.
				childBM, err := decl.child.Bind()
				if err != nil {
					return nil, err
				}
				ext.cached.Store(childBM)
			}
			ex = ext
		} else {
			fn, err := im.resolveHandler(w)
			if err != nil {
				return nil, err
			}
			ex = &directExecutor{wrapper: w, handler: fn}
		}

		for _, p := range reg.pathsOf(method) {
			bm.paths[p] = ex
		}
	}

	im.bound.CompareAndSwap(nil, bm)
	return im.bound.Load(), nil
}

// resolveHandler finds the concrete handler for a wrapper: a provided
// handler from the implementation chain, else a default handler anywhere in
// the wrapper's base chain.
func (im *Implementation) resolveHandler(w *Wrapper) (HandlerFunc, error) {
	if h, ok := im.findHandler(w.method); ok {
		if h.hasSig && !h.sig.satisfies(w.sig) {
			return nil, &IncompatibleImplementationError{
				Descriptor:     w.owner,
				Implementation: im.name,
				Method:         w.method,
				Reason:         "handler signature does not match the declared signature",
			}
		}
		return h.fn, nil
	}
	if fn := w.defaultHandler(); fn != nil {
		return fn, nil
	}
	return nil, &UnimplementedMethodError{
		Descriptor: im.desc.name, Implementation: im.name, Method: w.method,
	}
}

func checkSubAPI(w *Wrapper, child *Implementation, implName string) error {
	if child.desc == nil || !hasBase(child.desc, w.extend) {
		got := "<none>"
		if child.desc != nil {
			got = child.desc.name
		}
		return &IncompatibleImplementationError{
			Descriptor:     w.owner,
			Implementation: implName,
			Method:         w.method,
			Reason:         "sub-API implements descriptor " + got + ", want " + w.extend.name,
		}
	}
	return nil
}

// Dispatch resolves a path to its executor and runs the call. An unknown
// path is a descriptor/implementation mismatch, reported as
// PathNotFoundError for the transport to treat as a server fault.
func (b *BoundMapping) Dispatch(path string, req *RequestCtx) (*Response, error) {
	ex, ok := b.paths[path]
	if !ok {
		return nil, &PathNotFoundError{Path: path}
	}
	return ex.invoke(path, req)
}

// Paths returns every dispatchable path in registration order.
func (b *BoundMapping) Paths() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// executor resolves a path to a callable and runs one call.
type executor interface {
	invoke(path string, req *RequestCtx) (*Response, error)
}

// directExecutor dispatches to a bound handler. The middleware-wrapped chain
// is built lazily and cached with an idempotent compare-and-set: the owner
// and handler are fixed once bound, so a duplicate write stores an
// equivalent value.
type directExecutor struct {
	wrapper *Wrapper
	handler HandlerFunc
	chain   atomic.Pointer[CallNext]
}

func (e *directExecutor) resolve() CallNext {
	if next := e.chain.Load(); next != nil {
		return *next
	}
	next := chainOf(e.wrapper, e.handler)
	e.chain.CompareAndSwap(nil, &next)
	return *e.chain.Load()
}

func (e *directExecutor) invoke(path string, req *RequestCtx) (*Response, error) {
	dispatch := e.resolve()

	ctx := NewCallCtx(req)
	ctx.Provide(RouteInfo{Path: path, Method: e.wrapper.method, Descriptor: e.wrapper.owner})

	resp, err := dispatch(ctx)
	if err != nil {
		// The one place an error is normal control flow: schema-validation
		// failures become structured 422 responses. Everything else
		// propagates unmodified.
		var se *SchemaError
		if errors.As(err, &se) {
			return NewValidationResponse(se, e.wrapper.sig.Params()), nil
		}
		return nil, err
	}
	return resp, nil
}

// extendedExecutor dispatches into a nested implementation's own bound
// mapping for the same path. A stable child is resolved at bind time; a
// factory child is re-resolved per access unless the extension opted into
// caching.
type extendedExecutor struct {
	wrapper  *Wrapper
	decl     subAPIDecl
	implName string
	cached   atomic.Pointer[BoundMapping]
}

func (e *extendedExecutor) invoke(path string, req *RequestCtx) (*Response, error) {
	nested, err := e.resolve()
	if err != nil {
		return nil, err
	}
	return nested.Dispatch(path, req)
}

func (e *extendedExecutor) resolve() (*BoundMapping, error) {
	if bm := e.cached.Load(); bm != nil {
		return bm, nil
	}

	child := e.decl.child
	if child == nil {
		child = e.decl.factory()
		if child == nil {
			return nil, &UnimplementedMethodError{
				Descriptor: e.wrapper.owner, Implementation: e.implName, Method: e.wrapper.method,
			}
		}
		if err := checkSubAPI(e.wrapper, child, e.implName); err != nil {
			return nil, err
		}
	}

	bm, err := child.Bind()
	if err != nil {
		return nil, err
	}
	if e.decl.cache {
		e.cached.CompareAndSwap(nil, bm)
	}
	return bm, nil
}

// chainOf folds the wrapper's middleware right to left around the terminal
// dispatcher, so the first-declared middleware is outermost. The inner chain
// is also provided into the context so the terminal dispatcher can strip it.
func chainOf(w *Wrapper, handler HandlerFunc) CallNext {
	next := CallNext(func(ctx *CallCtx) (*Response, error) {
		return dispatchTerminal(w, handler, ctx)
	})
	for i := len(w.middleware) - 1; i >= 0; i-- {
		mw, inner := w.middleware[i], next
		next = func(ctx *CallCtx) (*Response, error) {
			ctx.Provide(inner)
			return mw.Handle(ctx, inner)
		}
	}
	return next
}

// dispatchTerminal strips the call-next sentinel, materializes the declared
// parameter models from the request, and invokes the real handler. The
// handler must never see the sentinel.
func dispatchTerminal(w *Wrapper, handler HandlerFunc, ctx *CallCtx) (*Response, error) {
	ctx.remove(reflect.TypeOf((*CallNext)(nil)).Elem())

	for _, p := range w.sig.params {
		if _, ok := ctx.get(p.typ); ok {
			continue // middleware-provided value wins
		}
		if sectionOf(derefType(p.typ)) == sectionUnknown {
			if p.optional {
				continue
			}
			return nil, &SchemaError{Model: p.typ, Entries: []FieldError{{
				Loc:  []string{p.name},
				Msg:  "no value provided for parameter",
				Kind: "missing",
			}}}
		}
		v, err := bindModel(p.typ, ctx.Request())
		if err != nil {
			if p.optional {
				v = zeroModel(p.typ)
			} else {
				return nil, err
			}
		}
		ctx.Provide(v)
	}

	return handler(ctx)
}

func zeroModel(t reflect.Type) any {
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Elem().Interface()
}
