package util

import "github.com/rjNemo/underscore"

// Optimized and does not have problems with integer overflow.
func AbsInt(n int) int {
	y := n >> 63
	return (n ^ y) - y
}

func Modulo(n int, m int) int {
	r := n % m
	if (r > 0 && m < 0) || (r < 0 && m > 0) {
		return r + m
	}
	return r
}

// Keep the first element of the list for each distinct selector value,
// preserving the original order.
func UniqueBy[T any, V comparable](ls []T, selector func(v T) V) []T {
	res := []T{}
	seen := []V{}
	for _, e := range ls {
		s := selector(e)
		if !underscore.Contains(seen, s) {
			seen = append(seen, s)
			res = append(res, e)
		}
	}
	return res
}
