package shatter

import (
	"encoding/json"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// RequestCtx is the wire-independent view of an inbound request. The
// transport adapter has already resolved which path applies; the core does
// no URL parsing. Header keys are canonical wire names.
type RequestCtx struct {
	Body    []byte
	Headers map[string]string
	Query   url.Values
	Remote  string
}

// Header returns a header value by canonical wire name.
func (r *RequestCtx) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers[ToHeaderName(name)]
}

// Marker types embedded into request models to declare which request
// section a model binds from.
type (
	// RequestBody marks a model decoded from the JSON request body.
	RequestBody struct{}
	// RequestHeaders marks a model bound from request headers.
	RequestHeaders struct{}
	// RequestQueryParams marks a model bound from query parameters.
	RequestQueryParams struct{}
)

// Request sections, used as the kind discriminator in validation responses.
const (
	sectionBody    = "request_body"
	sectionHeaders = "request_headers"
	sectionQuery   = "request_query_params"
	sectionUnknown = "unknown"
)

// embedsMarker walks embedded struct fields looking for the marker type.
func embedsMarker(t, marker reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if f.Type == marker {
			return true
		}
		if embedsMarker(f.Type, marker) {
			return true
		}
	}
	return false
}

// sectionOf classifies a parameter model by its embedded marker.
func sectionOf(t reflect.Type) string {
	switch {
	case embedsMarker(t, reflect.TypeOf((*RequestBody)(nil)).Elem()):
		return sectionBody
	case embedsMarker(t, reflect.TypeOf((*RequestHeaders)(nil)).Elem()):
		return sectionHeaders
	case embedsMarker(t, reflect.TypeOf((*RequestQueryParams)(nil)).Elem()):
		return sectionQuery
	default:
		return sectionUnknown
	}
}

// bindModel materializes a parameter model of type t from the request.
// Body models are JSON-decoded, header and query models are bound field by
// field, and every model runs constraint validation afterward. The returned
// error is always a *SchemaError.
func bindModel(t reflect.Type, req *RequestCtx) (any, error) {
	elem := t
	wantPtr := false
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
		wantPtr = true
	}
	pv := reflect.New(elem)

	var errs []FieldError
	switch sectionOf(elem) {
	case sectionBody:
		if req != nil && len(req.Body) > 0 {
			if err := json.Unmarshal(req.Body, pv.Interface()); err != nil {
				return nil, &SchemaError{Model: t, Entries: []FieldError{{
					Loc:  []string{jsonName(elem)},
					Msg:  err.Error(),
					Kind: "json_invalid",
				}}}
			}
		}
	case sectionHeaders:
		errs = bindHeaderFields(pv.Elem(), req)
	case sectionQuery:
		errs = bindQueryFields(pv.Elem(), req)
	}

	errs = append(errs, validateConstraints(pv.Interface())...)
	if len(errs) > 0 {
		return nil, &SchemaError{Model: t, Entries: errs}
	}

	if wantPtr {
		return pv.Interface(), nil
	}
	return pv.Elem().Interface(), nil
}

// bindHeaderFields binds struct fields from request headers. The header name
// comes from the "header" tag, falling back to the wire casing of the JSON
// field name.
func bindHeaderFields(v reflect.Value, req *RequestCtx) []FieldError {
	var errs []FieldError
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
		var val string
		if req != nil && req.Headers != nil {
			val = req.Headers[name]
		}
		if val == "" {
			val = f.Tag.Get("default")
		}
		if val == "" {
			continue
		}
		if err := setFieldValue(v.Field(i), val); err != nil {
			errs = append(errs, FieldError{
				Loc:  []string{jsonFieldName(f)},
				Msg:  err.Error(),
				Kind: "type_error",
			})
		}
	}
	return errs
}

// bindQueryFields binds struct fields from query parameters via the "query"
// tag, falling back to the JSON field name.
func bindQueryFields(v reflect.Value, req *RequestCtx) []FieldError {
	var errs []FieldError
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Tag.Get("query")
		if name == "" {
			name = jsonFieldName(f)
		}
		var val string
		if req != nil && req.Query != nil {
			val = req.Query.Get(name)
		}
		if val == "" {
			val = f.Tag.Get("default")
		}
		if val == "" {
			continue
		}
		if err := setFieldValue(v.Field(i), val); err != nil {
			errs = append(errs, FieldError{
				Loc:  []string{jsonFieldName(f)},
				Msg:  err.Error(),
				Kind: "type_error",
			})
		}
	}
	return errs
}

// setFieldValue sets a reflect.Value from a string, supporting common types.
func setFieldValue(field reflect.Value, value string) error {
	if field.Type() == reflect.TypeOf((*time.Duration)(nil)).Elem() {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	}

	//exhaustive:ignore
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return &DeclarationError{Reason: "unsupported binding type: " + field.Type().String()}
	}
	return nil
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// jsonName is a lower-cased type name used as a fallback error location.
func jsonName(t reflect.Type) string {
	return strings.ToLower(t.Name())
}
