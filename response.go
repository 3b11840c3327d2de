package shatter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
)

// Response is the immutable outcome of one terminal handler call: a body
// (structured payload or opaque text), a status code, and a typed header
// model. One Response corresponds to exactly one handler outcome.
type Response struct {
	body   any
	code   int
	header any
}

// NewResponse builds a response from a body, status code, and header model.
// The header model is a struct whose fields render as wire headers.
func NewResponse(body any, code int, header any) *Response {
	return &Response{body: body, code: code, header: header}
}

// JSON builds a response carrying a JSON payload.
func JSON(body any, code int) *Response {
	return NewResponse(body, code, NewJSONHeaders())
}

// Text builds a plain-text response.
func Text(body string, code int) *Response {
	return NewResponse(body, code, NewTextHeaders())
}

// NotFound builds the canonical 404 response.
func NotFound() *Response {
	return JSON(NotFoundData{Detail: "Not Found"}, http.StatusNotFound)
}

// StatusCode returns the numeric status code.
func (r *Response) StatusCode() int { return r.code }

// Status renders the code with its reason phrase, e.g. "404 Not Found".
func (r *Response) Status() string {
	return fmt.Sprintf("%d %s", r.code, http.StatusText(r.code))
}

// Payload returns the raw body value.
func (r *Response) Payload() any { return r.body }

// Body serializes the body: strings pass through, everything else is JSON.
func (r *Response) Body() (string, error) {
	if s, ok := r.body.(string); ok {
		return s, nil
	}
	if r.body == nil {
		return "", nil
	}
	b, err := json.Marshal(r.body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HeaderModel returns the typed header model.
func (r *Response) HeaderModel() any { return r.header }

// Headers renders the header model as a wire header map, keys rewritten from
// the internal field-naming convention to wire casing.
func (r *Response) Headers() map[string]string {
	out := make(map[string]string)
	if r.header == nil {
		return out
	}
	v := reflect.ValueOf(r.header)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return out
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Tag.Get("header")
		if name == "" {
			name = ToHeaderName(jsonFieldName(f))
		}
		val := fmt.Sprint(v.Field(i).Interface())
		if val == "" {
			continue
		}
		out[name] = val
	}
	return out
}

// ToHeaderName rewrites an internal field name to wire header casing:
// underscores become hyphens and each segment is title-cased, so
// "content_type" renders as "Content-Type".
func ToHeaderName(name string) string {
	parts := strings.Split(strings.ReplaceAll(name, "_", "-"), "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}

// BaseHeaders is the empty header model.
type BaseHeaders struct{}

// JSONHeaders is the header model for JSON payloads.
type JSONHeaders struct {
	ContentType string `json:"content_type" header:"Content-Type"`
}

// NewJSONHeaders returns JSONHeaders with the default content type.
func NewJSONHeaders() JSONHeaders {
	return JSONHeaders{ContentType: "application/json"}
}

// TextHeaders is the header model for plain-text payloads.
type TextHeaders struct {
	ContentType string `json:"content_type" header:"Content-Type"`
}

// NewTextHeaders returns TextHeaders with the default content type.
func NewTextHeaders() TextHeaders {
	return TextHeaders{ContentType: "text/plain"}
}

// NotFoundData is the payload of the canonical 404 response.
type NotFoundData struct {
	Detail string `json:"detail"`
}
