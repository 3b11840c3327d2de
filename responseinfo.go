package shatter

import (
	"fmt"
	"net/http"
	"reflect"
)

// ResponseInfo is the declared — not actual — shape of a possible response:
// body type, status code, and header type. Used for documentation and
// validation, never for dispatch.
type ResponseInfo struct {
	Body   reflect.Type
	Code   int
	Header reflect.Type
}

func (ri ResponseInfo) String() string {
	return fmt.Sprintf("ResponseInfo(body=%v, code=%d, header=%v)", ri.Body, ri.Code, ri.Header)
}

// ResponseDecl is one arm of a declared response union.
type ResponseDecl interface {
	responseInfo(inherited []ResponseInfo) []ResponseInfo
}

type payloadDecl struct{ body reflect.Type }

func (d payloadDecl) responseInfo([]ResponseInfo) []ResponseInfo {
	return []ResponseInfo{{Body: d.body, Code: http.StatusOK, Header: reflect.TypeOf((*JSONHeaders)(nil)).Elem()}}
}

type typedDecl struct {
	body   reflect.Type
	code   int
	header reflect.Type
}

func (d typedDecl) responseInfo([]ResponseInfo) []ResponseInfo {
	return []ResponseInfo{{Body: d.body, Code: d.code, Header: d.header}}
}

type inheritedDecl struct{}

func (inheritedDecl) responseInfo(inherited []ResponseInfo) []ResponseInfo {
	return inherited
}

// JSONOf declares a payload arm: an implicit 200 JSON response carrying T.
func JSONOf[T any]() ResponseDecl {
	return payloadDecl{body: reflect.TypeOf((*T)(nil)).Elem()}
}

// ResponseOf declares a typed response arm with the given status code and
// the empty header model.
func ResponseOf[B any](code int) ResponseDecl {
	return typedDecl{body: reflect.TypeOf((*B)(nil)).Elem(), code: code, header: reflect.TypeOf((*BaseHeaders)(nil)).Elem()}
}

// ResponseWithHeaderOf declares a typed response arm with an explicit header
// model.
func ResponseWithHeaderOf[B, H any](code int) ResponseDecl {
	return typedDecl{body: reflect.TypeOf((*B)(nil)).Elem(), code: code, header: reflect.TypeOf((*H)(nil)).Elem()}
}

// Inherited declares the splice-in arm: "plus whatever the inner handler can
// return", so middleware need not repeat the handler's response set.
func Inherited() ResponseDecl {
	return inheritedDecl{}
}

// DescribeResponses expands a declared response union, splicing the
// caller-supplied inherited list at each Inherited arm, and deduplicates by
// (body, code, header) identity preserving first-seen order.
func DescribeResponses(decls []ResponseDecl, inherited []ResponseInfo) []ResponseInfo {
	var out []ResponseInfo
	for _, d := range decls {
		if d == nil {
			continue
		}
		out = append(out, d.responseInfo(inherited)...)
	}
	return dedupeResponses(out)
}

func dedupeResponses(infos []ResponseInfo) []ResponseInfo {
	seen := make(map[ResponseInfo]struct{}, len(infos))
	out := make([]ResponseInfo, 0, len(infos))
	for _, ri := range infos {
		if _, ok := seen[ri]; ok {
			continue
		}
		seen[ri] = struct{}{}
		out = append(out, ri)
	}
	return out
}

// ResponseDescriptions folds a wrapper's declared responses through its
// middleware, innermost first, so middleware can splice the handler's set
// via Inherited.
func (w *Wrapper) ResponseDescriptions() []ResponseInfo {
	infos := DescribeResponses(w.responses, nil)
	for i := len(w.middleware) - 1; i >= 0; i-- {
		if rd, ok := w.middleware[i].(ResponseDeclarer); ok {
			infos = DescribeResponses(rd.Responses(), infos)
		}
	}
	return infos
}

// ResponseDeclarer is optionally implemented by middleware that declares the
// responses it may produce.
type ResponseDeclarer interface {
	Responses() []ResponseDecl
}
