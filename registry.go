package shatter

// Registry is a per-descriptor table of wrappers: method name → Wrapper plus
// path → method name. Within one registry a path resolves to exactly one
// method; an extend accessor may own several nested paths. Registries are
// populated and merged during Finalize and read-only afterward.
type Registry struct {
	owner       string
	wrappers    map[string]*Wrapper
	paths       map[string]string
	methodOrder []string
	pathOrder   []string
}

// Wrapper binds one path to one method name, its declared signature, and the
// descriptor that declared it. Wrappers across inheritance levels form a
// singly linked base chain, walked at bind time to find a default handler.
type Wrapper struct {
	path       string
	method     string
	sig        Signature
	owner      string
	base       *Wrapper
	middleware []Middleware
	responses  []ResponseDecl
	def        HandlerFunc
	extend     *Descriptor
}

// Path returns the wrapper's bound path. For extend accessors this is the
// first nested path; use Registry.Paths for the full set.
func (w *Wrapper) Path() string { return w.path }

// Method returns the wrapper's method name.
func (w *Wrapper) Method() string { return w.method }

// Owner returns the name of the descriptor that declared this wrapper.
func (w *Wrapper) Owner() string { return w.owner }

// Signature returns the wrapper's declared signature.
func (w *Wrapper) Signature() Signature { return w.sig }

// Base returns the wrapper this one overrides, or nil.
func (w *Wrapper) Base() *Wrapper { return w.base }

// IsExtension reports whether the wrapper is an extend accessor.
func (w *Wrapper) IsExtension() bool { return w.extend != nil }

// defaultHandler walks the base chain for a declared default handler. A
// method whose whole chain is placeholders has none.
func (w *Wrapper) defaultHandler() HandlerFunc {
	for cur := w; cur != nil; cur = cur.base {
		if cur.def != nil {
			return cur.def
		}
	}
	return nil
}

func newRegistry(owner string) *Registry {
	return &Registry{
		owner:    owner,
		wrappers: make(map[string]*Wrapper),
		paths:    make(map[string]string),
	}
}

// Owner returns the name of the descriptor owning this registry.
func (r *Registry) Owner() string { return r.owner }

// Paths returns every registered path in registration order.
func (r *Registry) Paths() []string {
	out := make([]string, len(r.pathOrder))
	copy(out, r.pathOrder)
	return out
}

// Methods returns every registered method name in registration order.
func (r *Registry) Methods() []string {
	out := make([]string, len(r.methodOrder))
	copy(out, r.methodOrder)
	return out
}

// Lookup resolves a path to the wrapper serving it.
func (r *Registry) Lookup(path string) (*Wrapper, bool) {
	method, ok := r.paths[path]
	if !ok {
		return nil, false
	}
	return r.wrappers[method], true
}

// Wrapper returns the wrapper for a method name.
func (r *Registry) Wrapper(method string) (*Wrapper, bool) {
	w, ok := r.wrappers[method]
	return w, ok
}

// register adds a new path↔method pair declared locally.
func (r *Registry) register(w *Wrapper) error {
	if existing, ok := r.paths[w.path]; ok && existing != w.method {
		return &PathConflictError{Descriptor: r.owner, Path: w.path, Method: w.method, Existing: existing}
	}
	if existing, ok := r.wrappers[w.method]; ok && existing.path != w.path {
		return &MethodConflictError{Descriptor: r.owner, Method: w.method, Path: w.path, Existing: existing.path}
	}
	r.put(w.method, w, []string{w.path})
	return nil
}

// registerExtension splices every path of a nested descriptor's registry in
// verbatim, bound to the extend accessor method.
func (r *Registry) registerExtension(method string, nested *Descriptor) error {
	reg := nested.registry
	paths := reg.Paths()
	for _, p := range paths {
		if _, ok := r.paths[p]; ok {
			return &ExtensionPathConflictError{Descriptor: r.owner, Nested: nested.name, Path: p}
		}
	}
	w := &Wrapper{
		method: method,
		owner:  r.owner,
		extend: nested,
	}
	if len(paths) > 0 {
		w.path = paths[0]
	}
	if existing, ok := r.wrappers[method]; ok {
		return &MethodConflictError{Descriptor: r.owner, Method: method, Path: w.path, Existing: existing.path}
	}
	r.put(method, w, paths)
	return nil
}

func (r *Registry) put(method string, w *Wrapper, paths []string) {
	if _, ok := r.wrappers[method]; !ok {
		r.methodOrder = append(r.methodOrder, method)
	}
	r.wrappers[method] = w
	for _, p := range paths {
		if _, ok := r.paths[p]; !ok {
			r.pathOrder = append(r.pathOrder, p)
		}
		r.paths[p] = method
	}
}

// pathsOf returns the paths bound to one method, in registration order.
func (r *Registry) pathsOf(method string) []string {
	var out []string
	for _, p := range r.pathOrder {
		if r.paths[p] == method {
			out = append(out, p)
		}
	}
	return out
}

// merge absorbs a direct ancestor registry. Parent wrappers absent from the
// child are copied with their base pointer set; method names present in both
// must be compatible overrides on an unchanged path. The first conflicting
// pair aborts the merge.
func (r *Registry) merge(parent *Registry) error {
	for _, method := range parent.methodOrder {
		pw := parent.wrappers[method]
		cw, overridden := r.wrappers[method]
		if !overridden {
			parentPaths := parent.pathsOf(method)
			for _, p := range parentPaths {
				if existing, ok := r.paths[p]; ok && existing != method {
					return &PathConflictError{Descriptor: r.owner, Path: p, Method: method, Existing: existing}
				}
			}
			absorbed := &Wrapper{
				path:       pw.path,
				method:     pw.method,
				sig:        pw.sig,
				owner:      pw.owner,
				base:       pw,
				middleware: pw.middleware,
				responses:  pw.responses,
				extend:     pw.extend,
			}
			r.put(method, absorbed, parentPaths)
			continue
		}

		// True override: same method name in both registries.
		if pw.extend != nil || cw.extend != nil {
			if pw.extend == nil || cw.extend == nil || !hasBase(cw.extend, pw.extend) {
				return &SignatureConflictError{Method: method, Descriptor: cw.owner, BaseDescriptor: pw.owner}
			}
		} else {
			if !cw.sig.CompatibleWith(pw.sig) {
				return &SignatureConflictError{Method: method, Descriptor: cw.owner, BaseDescriptor: pw.owner}
			}
			if cw.path != pw.path {
				return &PathRebindError{Descriptor: cw.owner, Method: method, Path: cw.path, BasePath: pw.path}
			}
		}
		// Bases merge left to right and the left-most chain wins: once the
		// base pointer is set, a later compatible parent is checked but not
		// linked, keeping the first-merged chain (and its default handlers)
		// reachable.
		if cw.base == nil {
			cw.base = pw
		}
	}
	return nil
}
