package utils

import "math"

// Round rounds half up (towards +Inf) to the given number of decimals,
// which is how the exported figures have always been rounded.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Floor(v*p+0.5) / p
}

// RoundInt rounds half up to the nearest integer
func RoundInt(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
