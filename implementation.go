package shatter

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// Implementation attaches concrete handlers to a descriptor. Implementations
// form chains via WithBase, mirroring descriptor inheritance: a method left
// unprovided is looked up in the base implementation, then in the wrapper's
// own default-handler chain.
type Implementation struct {
	name     string
	desc     *Descriptor
	base     *Implementation
	handlers map[string]providedHandler
	subAPIs  map[string]subAPIDecl
	declErr  error

	bound atomic.Pointer[BoundMapping]
}

type providedHandler struct {
	sig    Signature
	hasSig bool
	fn     HandlerFunc
}

type subAPIDecl struct {
	method  string
	child   *Implementation
	factory func() *Implementation
	cache   bool
}

// ImplementationOption configures an Implementation at declaration time.
type ImplementationOption func(*Implementation)

// WithName overrides the implementation's name in error messages.
func WithName(name string) ImplementationOption {
	return func(im *Implementation) {
		im.name = name
	}
}

// WithBase sets a parent implementation whose handlers are inherited.
func WithBase(parent *Implementation) ImplementationOption {
	return func(im *Implementation) {
		im.base = parent
	}
}

// Provide attaches a handler for a method, with the signature the handler
// was written against. Bind verifies the signature against the descriptor's.
func Provide(method string, sig Signature, fn HandlerFunc) ImplementationOption {
	return func(im *Implementation) {
		im.addHandler(method, providedHandler{sig: sig, hasSig: true, fn: fn})
	}
}

// ProvideFunc attaches a handler without a declared signature; the
// descriptor's own signature is trusted.
func ProvideFunc(method string, fn HandlerFunc) ImplementationOption {
	return func(im *Implementation) {
		im.addHandler(method, providedHandler{fn: fn})
	}
}

// ProvideTyped attaches a typed function of the shape
// func(P1, …) (*Response, error). Its signature is derived via
// DeriveSignature with the given parameter names, and the parameters are
// pulled from the call context by type when the handler runs.
func ProvideTyped(method string, fn any, paramNames ...string) ImplementationOption {
	return func(im *Implementation) {
		sig, err := DeriveSignature(fn, paramNames...)
		if err != nil {
			im.fail(fmt.Errorf("method %q: %w", method, err))
			return
		}
		wrapped, err := typedHandler(fn, sig)
		if err != nil {
			im.fail(fmt.Errorf("method %q: %w", method, err))
			return
		}
		im.addHandler(method, providedHandler{sig: sig, hasSig: true, fn: wrapped})
	}
}

// ProvideSubAPI attaches a stable nested implementation for an extend
// accessor. The nested bound mapping is resolved once and cached.
func ProvideSubAPI(method string, child *Implementation) ImplementationOption {
	return func(im *Implementation) {
		im.addSubAPI(subAPIDecl{method: method, child: child, cache: true})
	}
}

// ProvideSubAPIFactory attaches a zero-argument factory producing the nested
// implementation per access. Resolution is cached only when cache is true;
// an uncached factory is consulted on every dispatch into the extension.
func ProvideSubAPIFactory(method string, factory func() *Implementation, cache bool) ImplementationOption {
	return func(im *Implementation) {
		im.addSubAPI(subAPIDecl{method: method, factory: factory, cache: cache})
	}
}

// NewImplementation declares an implementation of the given descriptor.
func NewImplementation(desc *Descriptor, opts ...ImplementationOption) *Implementation {
	im := &Implementation{
		desc:     desc,
		handlers: make(map[string]providedHandler),
		subAPIs:  make(map[string]subAPIDecl),
	}
	if desc != nil {
		im.name = desc.name + "Impl"
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Name returns the implementation's name.
func (im *Implementation) Name() string { return im.name }

// Descriptor returns the descriptor this implementation targets.
func (im *Implementation) Descriptor() *Descriptor { return im.desc }

func (im *Implementation) fail(err error) {
	if im.declErr == nil {
		im.declErr = err
	}
}

func (im *Implementation) addHandler(method string, h providedHandler) {
	if _, ok := im.handlers[method]; ok {
		im.fail(fmt.Errorf("method %q provided twice", method))
		return
	}
	if h.fn == nil {
		im.fail(fmt.Errorf("method %q provided with nil handler", method))
		return
	}
	im.handlers[method] = h
}

func (im *Implementation) addSubAPI(d subAPIDecl) {
	if _, ok := im.subAPIs[d.method]; ok {
		im.fail(fmt.Errorf("sub-API %q provided twice", d.method))
		return
	}
	if d.child == nil && d.factory == nil {
		im.fail(fmt.Errorf("sub-API %q provided with neither instance nor factory", d.method))
		return
	}
	im.subAPIs[d.method] = d
}

// findHandler walks the implementation chain for a provided handler.
func (im *Implementation) findHandler(method string) (providedHandler, bool) {
	for cur := im; cur != nil; cur = cur.base {
		if h, ok := cur.handlers[method]; ok {
			return h, true
		}
	}
	return providedHandler{}, false
}

// findSubAPI walks the implementation chain for a sub-API declaration.
func (im *Implementation) findSubAPI(method string) (subAPIDecl, bool) {
	for cur := im; cur != nil; cur = cur.base {
		if d, ok := cur.subAPIs[method]; ok {
			return d, true
		}
	}
	return subAPIDecl{}, false
}

// typedHandler wraps a typed function into a HandlerFunc that pulls its
// parameters out of the call context by type.
func typedHandler(fn any, sig Signature) (HandlerFunc, error) {
	fv := reflect.ValueOf(fn)
	t := fv.Type()
	if t.NumOut() != 2 || t.Out(0) != reflect.TypeOf((**Response)(nil)).Elem() || !isErrorType(t.Out(1)) {
		return nil, &DeclarationError{Reason: "typed handler must return (*Response, error)"}
	}

	return func(ctx *CallCtx) (*Response, error) {
		args := make([]reflect.Value, len(sig.params))
		for i, p := range sig.params {
			v, ok := ctx.get(p.typ)
			if !ok {
				return nil, &SchemaError{Model: p.typ, Entries: []FieldError{{
					Loc:  []string{p.name},
					Msg:  "no value provided for parameter",
					Kind: "missing",
				}}}
			}
			args[i] = reflect.ValueOf(v)
		}
		out := fv.Call(args)
		resp, _ := out[0].Interface().(*Response)
		err, _ := out[1].Interface().(error)
		return resp, err
	}, nil
}
