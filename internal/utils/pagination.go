// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty or
// not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageParams parses page and limit query values. Missing, zero or invalid
// values take the defaults (page 1, defLimit); negatives are raised to 1 and
// limit is capped at maxLimit when maxLimit > 0.
func PageParams(page, limit string, defLimit, maxLimit int) (int, int) {
	p := AtoiDefault(page, 1)
	if p == 0 {
		p = 1
	}
	l := AtoiDefault(limit, defLimit)
	if l == 0 {
		l = defLimit
	}
	if p < 1 {
		p = 1
	}
	if l < 1 {
		l = 1
	}
	if maxLimit > 0 && l > maxLimit {
		l = maxLimit
	}
	return p, l
}

// TotalPages is ceil(total/limit); zero when limit is not positive.
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
