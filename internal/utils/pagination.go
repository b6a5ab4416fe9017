// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import (
	"math"
	"strconv"
)

// AtoiDefault parses s as a base-10 int, or returns def when s is blank or
// not a number.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Page is a bounded pagination window.
type Page struct {
	Page   int
	Limit  int
	Offset int
}

// Paginate clamps a requested page and limit into a window no larger than
// maxLimit. A missing limit takes def; def itself is clamped into
// [1, maxLimit]. page is capped so Offset cannot overflow; such a page is
// past any real table and reads as empty.
func Paginate(page, limit, def, maxLimit int) Page {
	maxLimit = max(maxLimit, 1)
	if def < 1 || def > maxLimit {
		def = maxLimit
	}
	if limit < 1 {
		limit = def
	}
	limit = min(limit, maxLimit)
	page = min(max(page, 1), math.MaxInt/limit)
	return Page{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// TotalPages returns how many pages of size limit hold total rows.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
