package shatter

// Descriptor is an abstract API shape: named paths bound to method
// signatures, with no implementation attached. Declarations are collected as
// plain data; Finalize runs the merge algorithm once and freezes the
// registry. Finalization happens during program initialization, before any
// concurrent access.
type Descriptor struct {
	name       string
	middleware []Middleware
	decls      []routeDecl
	bases      []*Descriptor
	registry   *Registry
}

type routeDecl struct {
	path       string
	method     string
	sig        Signature
	middleware []Middleware
	responses  []ResponseDecl
	def        HandlerFunc
	extend     *Descriptor
}

// DescriptorOption configures a Descriptor at declaration time.
type DescriptorOption func(*Descriptor)

// RouteOption configures a single route declaration.
type RouteOption func(*routeDecl)

// WithMiddleware attaches descriptor-level middleware, appended after each
// route's own middleware list: middleware declared closest to the route runs
// outermost.
func WithMiddleware(mw ...Middleware) DescriptorOption {
	return func(d *Descriptor) {
		d.middleware = append(d.middleware, mw...)
	}
}

// WithRouteMiddleware attaches middleware to one route.
func WithRouteMiddleware(mw ...Middleware) RouteOption {
	return func(rd *routeDecl) {
		rd.middleware = append(rd.middleware, mw...)
	}
}

// WithResponses declares the responses a route's handler may produce,
// consumed by DescribeResponses.
func WithResponses(decls ...ResponseDecl) RouteOption {
	return func(rd *routeDecl) {
		rd.responses = append(rd.responses, decls...)
	}
}

// WithDefault supplies a default handler for the route. A method with a
// default anywhere in its inheritance chain binds even when the
// implementation does not override it.
func WithDefault(h HandlerFunc) RouteOption {
	return func(rd *routeDecl) {
		rd.def = h
	}
}

// Route declares a path bound to a method name with the given signature.
func Route(path, method string, sig Signature, opts ...RouteOption) DescriptorOption {
	return func(d *Descriptor) {
		rd := routeDecl{path: path, method: method, sig: sig}
		for _, opt := range opts {
			opt(&rd)
		}
		d.decls = append(d.decls, rd)
	}
}

// ExtendRoute splices a nested descriptor's paths into this descriptor,
// bound to the named accessor method. The nested descriptor must already be
// finalized when this descriptor is.
func ExtendRoute(method string, nested *Descriptor) DescriptorOption {
	return func(d *Descriptor) {
		d.decls = append(d.decls, routeDecl{method: method, extend: nested})
	}
}

// NewDescriptor collects route and extension declarations for a named
// descriptor. Nothing is validated until Finalize.
func NewDescriptor(name string, opts ...DescriptorOption) *Descriptor {
	d := &Descriptor{name: name}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the descriptor's name.
func (d *Descriptor) Name() string { return d.name }

// Registry returns the finalized registry.
func (d *Descriptor) Registry() (*Registry, error) {
	if d.registry == nil {
		return nil, &MissingMappingError{Descriptor: d.name}
	}
	return d.registry, nil
}

// Finalize builds the registry from the collected declarations and merges in
// every direct ancestor, left to right. It must be called exactly once, and
// fails on the first conflict encountered: an ambiguous diamond is rejected
// rather than resolved heuristically.
func (d *Descriptor) Finalize(bases ...*Descriptor) error {
	if d.registry != nil {
		return &DeclarationError{Descriptor: d.name, Reason: "already finalized"}
	}
	for _, base := range bases {
		if base == nil {
			return &InvalidBaseError{Descriptor: d.name}
		}
		if base.registry == nil {
			return &InvalidBaseError{Descriptor: d.name, Base: base.name}
		}
	}

	reg := newRegistry(d.name)
	for _, rd := range d.decls {
		if rd.extend != nil {
			if err := d.finalizeExtension(reg, rd); err != nil {
				return err
			}
			continue
		}
		if err := rd.sig.validate(); err != nil {
			return &DeclarationError{Descriptor: d.name, Reason: "method " + rd.method + ": " + err.Error()}
		}
		if rd.method == "" {
			return &DeclarationError{Descriptor: d.name, Reason: "route " + rd.path + " has no method name"}
		}
		if rd.path == "" {
			return &DeclarationError{Descriptor: d.name, Reason: "method " + rd.method + " has no path"}
		}
		w := &Wrapper{
			path:       rd.path,
			method:     rd.method,
			sig:        rd.sig,
			owner:      d.name,
			middleware: dedupeMiddleware(expandMiddleware(append(append([]Middleware{}, rd.middleware...), d.middleware...))),
			responses:  rd.responses,
			def:        rd.def,
		}
		if err := reg.register(w); err != nil {
			return err
		}
	}

	for _, base := range bases {
		if err := reg.merge(base.registry); err != nil {
			return err
		}
	}

	d.bases = bases
	d.registry = reg
	return nil
}

func (d *Descriptor) finalizeExtension(reg *Registry, rd routeDecl) error {
	if rd.method == "" {
		return &DeclarationError{Descriptor: d.name, Reason: "extension has no accessor method name"}
	}
	if rd.extend == nil {
		return &DeclarationError{Descriptor: d.name, Reason: "method " + rd.method + " extends a nil descriptor"}
	}
	if rd.extend.registry == nil {
		return &DeclarationError{Descriptor: d.name,
			Reason: "method " + rd.method + " extends descriptor " + rd.extend.name + " which has not been finalized"}
	}
	return reg.registerExtension(rd.method, rd.extend)
}

// hasBase reports whether base appears anywhere in d's ancestry, d itself
// included.
func hasBase(d, base *Descriptor) bool {
	if d == base {
		return true
	}
	for _, b := range d.bases {
		if hasBase(b, base) {
			return true
		}
	}
	return false
}
