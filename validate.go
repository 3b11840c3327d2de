package shatter

import (
	"fmt"
	"net/http"
	"reflect"
)

// FieldError is one structured validation failure: the location path of the
// offending field, a message, and a machine-readable kind.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Kind string   `json:"type"`
}

// SchemaError reports that a request section failed validation against its
// declared parameter model. It is the one error kind recovered at request
// time: the outermost dispatch boundary translates it into a 422 response
// instead of propagating it.
type SchemaError struct {
	Model   reflect.Type
	Entries []FieldError
}

func (e *SchemaError) Error() string {
	name := "request"
	if e.Model != nil {
		name = e.Model.String()
	}
	return fmt.Sprintf("shatter: %d validation error(s) for %s", len(e.Entries), name)
}

// ValidationErrorData is the payload of a 422 validation response.
type ValidationErrorData struct {
	Detail []FieldError `json:"detail"`
	Kind   string       `json:"kind"`
}

// NewValidationResponse translates a SchemaError into the structured 422
// response. The failing model is classified against the candidate parameter
// models into a request section; for header-section failures the last
// location segment is rewritten to wire header casing, so the reported
// location matches what the client actually sent.
func NewValidationResponse(err *SchemaError, models []reflect.Type) *Response {
	kind := sectionUnknown
	failing := derefType(err.Model)
	for _, m := range models {
		if derefType(m) == failing && failing != nil {
			kind = sectionOf(failing)
			break
		}
	}

	detail := make([]FieldError, 0, len(err.Entries))
	for _, entry := range err.Entries {
		e := FieldError{
			Loc:  append([]string{}, entry.Loc...),
			Msg:  entry.Msg,
			Kind: entry.Kind,
		}
		if kind == sectionHeaders && len(e.Loc) > 0 {
			e.Loc[len(e.Loc)-1] = ToHeaderName(e.Loc[len(e.Loc)-1])
		}
		detail = append(detail, e)
	}

	return JSON(ValidationErrorData{Detail: detail, Kind: kind}, http.StatusUnprocessableEntity)
}

func derefType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}
