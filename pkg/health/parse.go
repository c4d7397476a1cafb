package health

import (
	"strconv"
	"strings"

	"github.com/cuemby/zkbalancer/pkg/types"
)

// ParseMntr parses a diagnostic response into a flat key/value table.
// Each line is key<TAB>value; lines without a tab are ignored.
func ParseMntr(output string) types.Metrics {
	metrics := make(types.Metrics)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		key, value, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		metrics[key] = CoerceValue(strings.TrimSpace(value))
	}
	return metrics
}

// CoerceValue applies the value coercion rule: digit-only strings become
// integers, anything else that parses as a float becomes a float, and the
// rest stays a string.
func CoerceValue(value string) types.MetricValue {
	if isDigits(value) {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return types.IntValue(n)
		}
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return types.FloatValue(f)
	}
	return types.StringValue(value)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
