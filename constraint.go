package shatter

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// validateConstraints checks constraint tags on a model's fields and returns
// one FieldError per violation. Supported tags: required, minLength,
// maxLength, pattern, minimum, maximum, enum, minItems, maxItems.
func validateConstraints(v any) []FieldError {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	var errs []FieldError
	collectConstraintErrors(rv, nil, &errs)
	return errs
}

func collectConstraintErrors(rv reflect.Value, prefix []string, errs *[]FieldError) {
	t := rv.Type()

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}

		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		loc := append(append([]string{}, prefix...), name)
		fv := rv.Field(i)

		if f.Tag.Get("required") == "true" && fv.IsZero() {
			*errs = append(*errs, FieldError{Loc: loc, Msg: "field required", Kind: "missing"})
			continue
		}

		checkFieldConstraints(f, fv, loc, errs)

		if fv.Kind() == reflect.Struct {
			collectConstraintErrors(fv, loc, errs)
		}
	}
}

func checkFieldConstraints(f reflect.StructField, fv reflect.Value, loc []string, errs *[]FieldError) {
	// minLength / maxLength / pattern / enum — strings.
	if fv.Kind() == reflect.String {
		val := fv.String()
		if tag := f.Tag.Get("minLength"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && len(val) < n {
				*errs = append(*errs, FieldError{
					Loc:  loc,
					Msg:  fmt.Sprintf("must be at least %d characters", n),
					Kind: "string_too_short",
				})
			}
		}
		if tag := f.Tag.Get("maxLength"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && len(val) > n {
				*errs = append(*errs, FieldError{
					Loc:  loc,
					Msg:  fmt.Sprintf("must be at most %d characters", n),
					Kind: "string_too_long",
				})
			}
		}
		if tag := f.Tag.Get("pattern"); tag != "" {
			if matched, err := regexp.MatchString(tag, val); err == nil && !matched {
				*errs = append(*errs, FieldError{
					Loc:  loc,
					Msg:  fmt.Sprintf("must match pattern %s", tag),
					Kind: "string_pattern_mismatch",
				})
			}
		}
		if tag := f.Tag.Get("enum"); tag != "" {
			allowed := strings.Split(tag, ",")
			found := false
			for _, a := range allowed {
				if a == val {
					found = true
					break
				}
			}
			if !found {
				*errs = append(*errs, FieldError{
					Loc:  loc,
					Msg:  fmt.Sprintf("must be one of [%s]", tag),
					Kind: "enum",
				})
			}
		}
	}

	// minimum / maximum — numeric types.
	if isNumericKind(fv.Kind()) {
		floatVal := toFloat64(fv)
		if tag := f.Tag.Get("minimum"); tag != "" {
			if lower, err := strconv.ParseFloat(tag, 64); err == nil && floatVal < lower {
				*errs = append(*errs, FieldError{
					Loc:  loc,
					Msg:  fmt.Sprintf("must be at least %s", tag),
					Kind: "greater_than_equal",
				})
			}
		}
		if tag := f.Tag.Get("maximum"); tag != "" {
			if upper, err := strconv.ParseFloat(tag, 64); err == nil && floatVal > upper {
				*errs = append(*errs, FieldError{
					Loc:  loc,
					Msg:  fmt.Sprintf("must be at most %s", tag),
					Kind: "less_than_equal",
				})
			}
		}
	}

	// minItems / maxItems — slices.
	if fv.Kind() == reflect.Slice {
		length := fv.Len()
		if tag := f.Tag.Get("minItems"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && length < n {
				*errs = append(*errs, FieldError{
					Loc:  loc,
					Msg:  fmt.Sprintf("must have at least %d items", n),
					Kind: "too_short",
				})
			}
		}
		if tag := f.Tag.Get("maxItems"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && length > n {
				*errs = append(*errs, FieldError{
					Loc:  loc,
					Msg:  fmt.Sprintf("must have at most %d items", n),
					Kind: "too_long",
				})
			}
		}
	}
}

func isNumericKind(k reflect.Kind) bool {
	//exhaustive:ignore
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func toFloat64(v reflect.Value) float64 {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default: // float32, float64
		return v.Float()
	}
}
