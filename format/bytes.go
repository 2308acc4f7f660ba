package format

import (
	"math"

	"github.com/dustin/go-humanize"
)

// Bytes renders a byte count with base-1024 units. Zero, negative and
// non-finite values render as "0".
func Bytes(v float64) string {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}

	return humanize.IBytes(uint64(v))
}

// Value renders a reported metric value as Bytes when it is numeric.
// Values of any other type come back with ok set to false.
func Value(v any) (string, bool) {
	switch n := v.(type) {
	case float64:
		return Bytes(n), true
	case int:
		return Bytes(float64(n)), true
	case int64:
		return Bytes(float64(n)), true
	case uint64:
		return Bytes(float64(n)), true
	}

	return "", false
}
