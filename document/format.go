package document

import (
	"fmt"
	"math"
	"strconv"
)

// Format renders a scalar for table display. Numbers that are mathematically
// integral print without a decimal point ("7", not "7.00"), other numbers
// print with exactly two decimal places, and anything non-numeric prints as
// its own string form unchanged. Numeric strings ("7.0") count as numbers.
func Format(value interface{}) string {
	switch v := value.(type) {
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		num, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return v
		}
		return formatFloat(num)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(num float64) string {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return fmt.Sprintf("%v", num)
	}
	if num != math.Trunc(num) {
		return strconv.FormatFloat(num, 'f', 2, 64)
	}
	// Converting an integral beyond the int64 range would corrupt it.
	if num >= math.MinInt64 && num < math.MaxInt64 {
		return strconv.FormatInt(int64(num), 10)
	}
	return strconv.FormatFloat(num, 'f', -1, 64)
}

// FormatQuantity appends the unit directly after the formatted value with no
// separator ("98.60F"), matching the historical table output that downstream
// numeric extraction depends on.
func FormatQuantity(value interface{}, unit string) string {
	return Format(value) + unit
}
