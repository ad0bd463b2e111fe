package format

import (
	"fmt"
	"math"
	"strings"
)

// Float formats a score with four decimals; NaN renders as "n/a".
func Float(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

// Percent formats a ratio in [0,1] as "87.5%"; NaN renders as "n/a".
func Percent(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v*100)
}

// Vector formats a probability vector as "[0.2000 0.3000 0.5000]".
func Vector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = Float(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
