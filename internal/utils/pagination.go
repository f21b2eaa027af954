// internal/utils/pagination.go
package utils

import "math"

const DefaultPageSize = 16

type PaginationResult[T any] struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
	Data       []T `json:"data"`
}

// TotalPages is ceil(total/limit); zero items means zero pages.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// ClampPage keeps page inside [1, max(1, totalPages)].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if totalPages < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Paginate slices items for a 1-indexed page.
func Paginate[T any](items []T, page, limit int) PaginationResult[T] {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	totalPages := TotalPages(len(items), limit)
	page = ClampPage(page, totalPages)

	start := (page - 1) * limit
	end := start + limit
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	return PaginationResult[T]{
		Page:       page,
		Limit:      limit,
		Total:      len(items),
		TotalPages: totalPages,
		Data:       items[start:end],
	}
}
