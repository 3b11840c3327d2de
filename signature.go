package shatter

import (
	"fmt"
	"reflect"
)

// Signature is a handler's typed contract: required parameter models,
// optional (defaulted) parameter models, and a single return type. It is
// built once per route declaration and immutable afterward.
type Signature struct {
	params  []paramDecl
	returns reflect.Type
	err     error
}

type paramDecl struct {
	name     string
	typ      reflect.Type
	optional bool
}

// SignatureOption configures a Signature under construction.
type SignatureOption func(*Signature)

// Param declares a required parameter model.
func Param[T any](name string) SignatureOption {
	return func(s *Signature) {
		s.addParam(name, reflect.TypeOf((*T)(nil)).Elem(), false)
	}
}

// Optional declares an optional parameter model. Optional parameters are
// materialized leniently at dispatch time: absence yields the zero value.
func Optional[T any](name string) SignatureOption {
	return func(s *Signature) {
		s.addParam(name, reflect.TypeOf((*T)(nil)).Elem(), true)
	}
}

// Returns declares the return type.
func Returns[T any]() SignatureOption {
	return func(s *Signature) {
		s.returns = reflect.TypeOf((*T)(nil)).Elem()
	}
}

// NewSignature builds a Signature from the given options. Declaration
// mistakes (unnamed parameters, duplicate names) surface when the owning
// descriptor is finalized.
func NewSignature(opts ...SignatureOption) Signature {
	var s Signature
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s *Signature) addParam(name string, typ reflect.Type, optional bool) {
	if s.err != nil {
		return
	}
	if name == "" {
		s.err = fmt.Errorf("parameter of type %v has no name", typ)
		return
	}
	if typ == nil {
		s.err = fmt.Errorf("parameter %q has no type", name)
		return
	}
	for _, p := range s.params {
		if p.name == name {
			s.err = fmt.Errorf("duplicate parameter %q", name)
			return
		}
	}
	s.params = append(s.params, paramDecl{name: name, typ: typ, optional: optional})
}

// DeriveSignature reflects a Signature from a typed function of the shape
// func(P1, P2, …) (R, error). Go does not retain parameter names at runtime,
// so the caller supplies one name per parameter; a missing or surplus name
// is the declaration-time error that a missing type annotation would be.
func DeriveSignature(fn any, names ...string) (Signature, error) {
	if fn == nil {
		return Signature{}, &DeclarationError{Reason: "cannot derive signature from nil"}
	}
	t := reflect.TypeOf(fn)
	if t.Kind() != reflect.Func {
		return Signature{}, &DeclarationError{Reason: fmt.Sprintf("cannot derive signature from %v", t)}
	}
	if t.IsVariadic() {
		return Signature{}, &DeclarationError{Reason: "cannot derive signature from variadic function"}
	}
	if len(names) != t.NumIn() {
		return Signature{}, &DeclarationError{Reason: fmt.Sprintf(
			"function has %d parameters but %d names were given", t.NumIn(), len(names))}
	}

	var s Signature
	for i := 0; i < t.NumIn(); i++ {
		s.addParam(names[i], t.In(i), false)
	}
	if s.err != nil {
		return Signature{}, &DeclarationError{Reason: s.err.Error()}
	}

	switch t.NumOut() {
	case 0:
		// no return contract
	case 1:
		if !isErrorType(t.Out(0)) {
			s.returns = t.Out(0)
		}
	case 2:
		if !isErrorType(t.Out(1)) {
			return Signature{}, &DeclarationError{Reason: "second return value must be error"}
		}
		s.returns = t.Out(0)
	default:
		return Signature{}, &DeclarationError{Reason: "function returns more than two values"}
	}
	return s, nil
}

func isErrorType(t reflect.Type) bool {
	return t == reflect.TypeOf((*error)(nil)).Elem()
}

// Returns reports the declared return type; nil when none was declared.
func (s Signature) Returns() reflect.Type { return s.returns }

// Params returns the declared parameter types in declaration order,
// required before optional semantics preserved per entry.
func (s Signature) Params() []reflect.Type {
	out := make([]reflect.Type, len(s.params))
	for i, p := range s.params {
		out[i] = p.typ
	}
	return out
}

func (s Signature) lookup(name string) (paramDecl, bool) {
	for _, p := range s.params {
		if p.name == name {
			return p, true
		}
	}
	return paramDecl{}, false
}

func (s Signature) validate() error {
	return s.err
}

// CompatibleWith reports whether s may override base: the required parameter
// sets must be identical in name and type, every optional parameter of base
// must exist in s with an identical type (s may add more optional
// parameters), and the return type must equal base's or implement it when
// base declares an interface (covariant return). Pure and side-effect free.
func (s Signature) CompatibleWith(base Signature) bool {
	if s.err != nil || base.err != nil {
		return false
	}
	return s.paramsCompatible(base) && returnCompatible(s.returns, base.returns)
}

// satisfies is the bind-time variant of CompatibleWith: a provided handler
// must carry the declared parameter contract, but physically returns
// *Response, so a *Response or absent return defers to the declared one.
func (s Signature) satisfies(base Signature) bool {
	if s.err != nil || base.err != nil {
		return false
	}
	if !s.paramsCompatible(base) {
		return false
	}
	if s.returns == nil || s.returns == reflect.TypeOf((**Response)(nil)).Elem() {
		return true
	}
	return returnCompatible(s.returns, base.returns)
}

func (s Signature) paramsCompatible(base Signature) bool {
	var required, baseRequired int
	for _, p := range s.params {
		if !p.optional {
			required++
		}
	}
	for _, p := range base.params {
		if p.optional {
			got, ok := s.lookup(p.name)
			if !ok || !got.optional || got.typ != p.typ {
				return false
			}
			continue
		}
		baseRequired++
		got, ok := s.lookup(p.name)
		if !ok || got.optional || got.typ != p.typ {
			return false
		}
	}
	return required == baseRequired
}

// returnCompatible accepts an identical return type, or one that implements
// a base interface return.
func returnCompatible(got, want reflect.Type) bool {
	if got == want {
		return true
	}
	if got == nil || want == nil {
		return false
	}
	return want.Kind() == reflect.Interface && got.Implements(want)
}
