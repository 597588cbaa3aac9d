// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageWindow converts 1-based page/perPage query values into a limit/offset
// pair. Out-of-range values are clamped: page floors at 1, perPage falls back
// to defPer when non-positive and is capped at maxPer.
func PageWindow(page, perPage, defPer, maxPer int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defPer
	}
	if perPage > maxPer {
		perPage = maxPer
	}
	return perPage, (page - 1) * perPage
}

// TotalPages returns the number of pages needed for total rows at perPage per
// page; zero rows still report one page so clients always have a valid last
// page to request.
func TotalPages(total int64, perPage int) int {
	if perPage < 1 {
		return 1
	}
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	if pages < 1 {
		pages = 1
	}
	return pages
}
