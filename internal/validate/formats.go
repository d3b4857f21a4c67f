package validate

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// openAPIFormats are the formats OpenAPI adds on top of JSON Schema.
var openAPIFormats = []*jsonschema.Format{
	{Name: "int32", Validate: intFormat(math.MinInt32, math.MaxInt32)},
	{Name: "int64", Validate: intFormat(math.MinInt64, math.MaxInt64)},
	{Name: "float", Validate: floatFormat(math.MaxFloat32)},
	{Name: "double", Validate: floatFormat(math.MaxFloat64)},
	{Name: "byte", Validate: byteFormat},
	{Name: "binary", Validate: func(any) error { return nil }},
	{Name: "password", Validate: func(any) error { return nil }},
}

// Formats only constrain values of their own type; anything else passes.
// Shaped values arrive as int64 or float64, decoded ones as json.Number.
func intFormat(lo, hi int64) func(any) error {
	return func(v any) error {
		var i int64
		switch n := v.(type) {
		case json.Number:
			parsed, err := strconv.ParseInt(string(n), 10, 64)
			if err != nil {
				return floatInRange(v, float64(lo), float64(hi))
			}
			i = parsed
		case int64:
			i = n
		case int:
			i = int64(n)
		case int32:
			i = int64(n)
		default:
			return floatInRange(v, float64(lo), float64(hi))
		}
		if i < lo || i > hi {
			return fmt.Errorf("%d is out of range [%d, %d]", i, lo, hi)
		}
		return nil
	}
}

func floatFormat(max float64) func(any) error {
	return func(v any) error {
		return floatInRange(v, -max, max)
	}
}

func floatInRange(v any, lo, hi float64) error {
	f, ok := number(v)
	if !ok {
		return nil
	}
	if math.IsInf(f, 0) || f < lo || f > hi {
		return fmt.Errorf("%v is out of range", v)
	}
	return nil
}

func byteFormat(v any) error {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return fmt.Errorf("not base64 encoded: %w", err)
	}
	return nil
}
