// Package pagination implements the offset-based paging used by all list
// endpoints: 1-indexed page numbers and a fixed page size.
package pagination

import "gorm.io/gorm"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Request struct {
	PageNumber int    `form:"pageNumber,default=1"`
	PageSize   int    `form:"pageSize,default=10"`
	Search     string `form:"search"`
}

type Page struct {
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
	PageNumber int   `json:"pageNumber"`
	PageSize   int   `json:"pageSize"`
	HasNext    bool  `json:"hasNextPage"`
	HasPrev    bool  `json:"hasPreviousPage"`
}

// Normalize clamps the request into valid bounds.
func (r Request) Normalize() Request {
	if r.PageNumber < 1 {
		r.PageNumber = 1
	}
	if r.PageSize < 1 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	return r
}

// Offset returns the row offset for the normalized request.
func (r Request) Offset() int {
	n := r.Normalize()
	return (n.PageNumber - 1) * n.PageSize
}

// NewPage computes paging metadata from a total row count.
func NewPage(req Request, total int64) Page {
	n := req.Normalize()
	totalPages := int((total + int64(n.PageSize) - 1) / int64(n.PageSize))
	return Page{
		TotalItems: total,
		TotalPages: totalPages,
		PageNumber: n.PageNumber,
		PageSize:   n.PageSize,
		HasNext:    n.PageNumber < totalPages,
		HasPrev:    n.PageNumber > 1 && totalPages > 0,
	}
}

// Scope applies limit/offset to a gorm query.
func Scope(req Request) func(*gorm.DB) *gorm.DB {
	n := req.Normalize()
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Offset(n.Offset()).Limit(n.PageSize)
	}
}
