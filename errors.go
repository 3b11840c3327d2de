package shatter

import "fmt"

// Declaration and binding errors are raised while descriptors are finalized
// and implementations are bound. They are fatal to startup and carry the
// names of the conflicting descriptors, methods, and paths so the offending
// declaration can be located. Only SchemaError (see validate.go) is ever
// recovered at request time.

// DeclarationError reports an invalid declaration: an unnamed parameter, a
// nil type, a descriptor finalized twice, or an extension of a descriptor
// that has not been finalized yet.
type DeclarationError struct {
	Descriptor string
	Reason     string
}

func (e *DeclarationError) Error() string {
	if e.Descriptor == "" {
		return fmt.Sprintf("shatter: %s", e.Reason)
	}
	return fmt.Sprintf("shatter: descriptor %q: %s", e.Descriptor, e.Reason)
}

// PathConflictError reports a path bound to two different methods within one
// registry, either locally or while merging a base registry.
type PathConflictError struct {
	Descriptor string
	Path       string
	Method     string
	Existing   string
}

func (e *PathConflictError) Error() string {
	return fmt.Sprintf("shatter: descriptor %q binds path %q to method %q, already bound to %q",
		e.Descriptor, e.Path, e.Method, e.Existing)
}

// MethodConflictError reports a method name already bound to a different
// path in the same registry.
type MethodConflictError struct {
	Descriptor string
	Method     string
	Path       string
	Existing   string
}

func (e *MethodConflictError) Error() string {
	return fmt.Sprintf("shatter: method %q is already bound to path %q in descriptor %q, cannot rebind to %q",
		e.Method, e.Existing, e.Descriptor, e.Path)
}

// SignatureConflictError reports an override whose signature is not
// compatible with the signature it inherits.
type SignatureConflictError struct {
	Method         string
	Descriptor     string
	BaseDescriptor string
}

func (e *SignatureConflictError) Error() string {
	return fmt.Sprintf("shatter: method %q in descriptor %q is not compatible with base method in %q",
		e.Method, e.Descriptor, e.BaseDescriptor)
}

// PathRebindError reports an inherited method re-declared on a different
// path than the one it inherits.
type PathRebindError struct {
	Descriptor string
	Method     string
	Path       string
	BasePath   string
}

func (e *PathRebindError) Error() string {
	return fmt.Sprintf("shatter: descriptor %q rebinds method %q from path %q to %q",
		e.Descriptor, e.Method, e.BasePath, e.Path)
}

// ExtensionPathConflictError reports a nested descriptor path that collides
// with a path already registered locally.
type ExtensionPathConflictError struct {
	Descriptor string
	Nested     string
	Path       string
}

func (e *ExtensionPathConflictError) Error() string {
	return fmt.Sprintf("shatter: extending %q into descriptor %q: path %q already registered",
		e.Nested, e.Descriptor, e.Path)
}

// InvalidBaseError reports a nil or unfinalized descriptor passed as a base.
type InvalidBaseError struct {
	Descriptor string
	Base       string
}

func (e *InvalidBaseError) Error() string {
	if e.Base == "" {
		return fmt.Sprintf("shatter: descriptor %q: nil base descriptor", e.Descriptor)
	}
	return fmt.Sprintf("shatter: descriptor %q: base %q has not been finalized", e.Descriptor, e.Base)
}

// MissingMappingError reports use of a descriptor before Finalize built its
// registry.
type MissingMappingError struct {
	Descriptor string
}

func (e *MissingMappingError) Error() string {
	return fmt.Sprintf("shatter: descriptor %q has no registry; call Finalize first", e.Descriptor)
}

// UnimplementedMethodError reports a bind against an implementation that
// supplies no handler for a method anywhere in its chain.
type UnimplementedMethodError struct {
	Descriptor     string
	Implementation string
	Method         string
}

func (e *UnimplementedMethodError) Error() string {
	return fmt.Sprintf("shatter: implementation %q does not implement method %q of descriptor %q",
		e.Implementation, e.Method, e.Descriptor)
}

// IncompatibleImplementationError reports a handler whose declared signature
// is not compatible with the descriptor's, or a sub-API implementation bound
// to the wrong descriptor.
type IncompatibleImplementationError struct {
	Descriptor     string
	Implementation string
	Method         string
	Reason         string
}

func (e *IncompatibleImplementationError) Error() string {
	return fmt.Sprintf("shatter: handler %q in implementation %q is not compatible with descriptor %q: %s",
		e.Method, e.Implementation, e.Descriptor, e.Reason)
}

// PathNotFoundError reports a dispatch on a path absent from the bound
// mapping. This is a descriptor/implementation mismatch — a programming
// fault, not a request-time user error — and is propagated to the transport
// rather than rendered as a normal response.
type PathNotFoundError struct {
	Path string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("shatter: no endpoint bound for path %q", e.Path)
}
