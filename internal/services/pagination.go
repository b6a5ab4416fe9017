package services

import "github.com/tbourn/leadops-backend/internal/utils"

// PageResult is one page of a listing plus the metadata clients need to
// request the next one.
type PageResult[T any] struct {
	Items      []T
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

func newPageResult[T any](items []T, total int64, p utils.Page) PageResult[T] {
	return PageResult[T]{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: utils.TotalPages(total, p.Limit),
	}
}
