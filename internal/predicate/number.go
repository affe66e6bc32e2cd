package predicate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// toNumber accepts numbers and numeric text such as " 42 " read from a page.
func toNumber(v any) (float64, bool) {
	switch current := v.(type) {
	case float64:
		return current, !math.IsNaN(current)
	case float32:
		return float64(current), true
	case int:
		return float64(current), true
	case int64:
		return float64(current), true
	case int32:
		return float64(current), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(current), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toCount accepts non-negative integers. Query operands are decoded as
// float64, so 3 arrives as float64(3).
func toCount(v any) (int, error) {
	switch current := v.(type) {
	case int:
		if current < 0 {
			return 0, fmt.Errorf("count %d is negative", current)
		}
		return current, nil
	case float64:
		if current != math.Trunc(current) || current < 0 || current > math.MaxInt32 {
			return 0, fmt.Errorf("count %v is not a non-negative integer", current)
		}
		return int(current), nil
	default:
		return 0, fmt.Errorf("count %v is not a number", v)
	}
}
