package types

import (
	"encoding/json"
	"math"
	"strconv"
)

// ValueKind tags the representation held by a MetricValue
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
)

// MetricValue is a numeric-or-string value parsed from a diagnostic response
type MetricValue struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
}

// IntValue builds an integer MetricValue
func IntValue(v int64) MetricValue { return MetricValue{Kind: KindInt, Int: v} }

// FloatValue builds a floating-point MetricValue
func FloatValue(v float64) MetricValue { return MetricValue{Kind: KindFloat, Float: v} }

// StringValue builds a string MetricValue
func StringValue(v string) MetricValue { return MetricValue{Kind: KindString, Str: v} }

// Number returns the value as float64 when it is numeric, or when it is a
// string that parses as a number
func (v MetricValue) Number() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}

func (v MetricValue) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Str
	}
}

func (v MetricValue) native() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	default:
		return v.Str
	}
}

// MarshalJSON emits numbers as JSON numbers and everything else as strings
func (v MetricValue) MarshalJSON() ([]byte, error) {
	if v.Kind == KindFloat {
		// NaN and Inf have no JSON representation
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return json.Marshal(v.String())
		}
	}
	return json.Marshal(v.native())
}

// MarshalYAML implements yaml.Marshaler
func (v MetricValue) MarshalYAML() (any, error) {
	return v.native(), nil
}

// Metrics is the flat key/value table parsed from a node's diagnostic output
type Metrics map[string]MetricValue

// Get returns the value stored under key
func (m Metrics) Get(key string) (MetricValue, bool) {
	v, ok := m[key]
	return v, ok
}

// FirstNumber returns the first key in keys holding a numeric value
func (m Metrics) FirstNumber(keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if f, ok := v.Number(); ok {
				return f, true
			}
		}
	}
	return 0, false
}
