package grapht

import (
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
)

// Values crossing component boundaries are the JSON-like family that the
// YAML loader, the GraphQL executor, and the database drivers all speak
// natively: nil, bool, int64, float64, string, []any, and map[string]any.
// Value is an alias rather than a wrapper so that driver results and
// GraphQL arguments flow through without conversion layers.
type Value = any

// normalizeValue canonicalizes the integer representations produced by the
// different front ends (graphql-go yields int, yaml.v3 yields int or
// uint64, drivers yield int64) so that downstream comparisons operate on a
// single shape.
func normalizeValue(v Value) Value {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// projectScalar projects a stored field value into the shape the GraphQL
// executor expects for a scalar field. The decision tree admits nil, bool,
// numbers, strings, and lists of those; any other shape is a
// TypeNotExpected error.
func projectScalar(fieldName string, v Value) (any, error) {
	switch t := normalizeValue(v).(type) {
	case nil:
		return nil, nil
	case bool, int64, float64, string:
		return t, nil
	case []any:
		for _, e := range t {
			switch e.(type) {
			case nil, bool, int64, float64, string:
			default:
				return nil, NewError(ErrTypeNotExpected, "field %s holds a non-scalar list element", fieldName)
			}
		}
		return t, nil
	default:
		return nil, NewError(ErrTypeNotExpected, "field %s holds a non-scalar value", fieldName)
	}
}

// copyValue returns a deep copy of v: nested maps and lists are copied,
// so mutating the copy leaves the original untouched.
func copyValue(v Value) Value {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	default:
		return t
	}
}

// valueToIDString extracts a string identifier from a value that may
// arrive as a string or a driver-native representation of one.
func valueToIDString(v Value) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	default:
		return "", NewError(ErrTypeConversionFailed, "cannot use %T as an id", v)
	}
}

// astToValue converts a GraphQL literal into the runtime value family.
// The query-filter scalars use it to admit both bare scalar literals and
// operator objects in filter positions.
func astToValue(v ast.Value) any {
	switch t := v.(type) {
	case *ast.IntValue:
		n, err := strconv.ParseInt(t.Value, 10, 64)
		if err != nil {
			return nil
		}
		return n
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return nil
		}
		return f
	case *ast.StringValue:
		return t.Value
	case *ast.BooleanValue:
		return t.Value
	case *ast.EnumValue:
		return t.Value
	case *ast.ListValue:
		out := make([]any, len(t.Values))
		for i, e := range t.Values {
			out[i] = astToValue(e)
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]any, len(t.Fields))
		for _, f := range t.Fields {
			out[f.Name.Value] = astToValue(f.Value)
		}
		return out
	default:
		return nil
	}
}
