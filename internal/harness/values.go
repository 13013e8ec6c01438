package harness

import (
	"fmt"

	"github.com/roach88/speciate/internal/ir"
)

// coerce converts a decoded YAML value to the Go type of logical type t.
// References pass through unchanged.
func coerce(t ir.Type, v any) (any, error) {
	switch t {
	case ir.Any:
		return v, nil
	case ir.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%v is not a bool", v)
		}
		return b, nil
	case ir.Float32, ir.Float64:
		var f float64
		switch x := v.(type) {
		case int:
			f = float64(x)
		case float64:
			f = x
		default:
			return nil, fmt.Errorf("%v is not a number", v)
		}
		if t == ir.Float32 {
			return float32(f), nil
		}
		return f, nil
	}

	n, ok := v.(int)
	if !ok {
		return nil, fmt.Errorf("%v is not an integer", v)
	}
	switch t {
	case ir.Int8:
		return int8(n), nil
	case ir.Uint8:
		return uint8(n), nil
	case ir.Int16:
		return int16(n), nil
	case ir.Uint16:
		return uint16(n), nil
	case ir.Int32:
		return int32(n), nil
	case ir.Uint32:
		return uint32(n), nil
	case ir.Int:
		return n, nil
	case ir.Uint:
		return uint(n), nil
	case ir.Int64:
		return int64(n), nil
	case ir.Uint64:
		return uint64(n), nil
	}
	return nil, fmt.Errorf("cannot convert %v to %s", v, t)
}

// render formats a value for traces and comparisons.
func render(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
