package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeClampsBounds(t *testing.T) {
	got := Request{PageNumber: 0, PageSize: 0}.Normalize()
	assert.Equal(t, 1, got.PageNumber)
	assert.Equal(t, DefaultPageSize, got.PageSize)

	got = Request{PageNumber: -5, PageSize: 1000}.Normalize()
	assert.Equal(t, 1, got.PageNumber)
	assert.Equal(t, MaxPageSize, got.PageSize)
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, (Request{PageNumber: 1, PageSize: 10}).Offset())
	assert.Equal(t, 50, (Request{PageNumber: 3, PageSize: 25}).Offset())
	// Unnormalized input is clamped before computing the offset.
	assert.Equal(t, 0, (Request{PageNumber: 0, PageSize: 0}).Offset())
}

func TestNewPage(t *testing.T) {
	page := NewPage(Request{PageNumber: 2, PageSize: 10}, 35)
	assert.Equal(t, int64(35), page.TotalItems)
	assert.Equal(t, 4, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)

	first := NewPage(Request{PageNumber: 1, PageSize: 10}, 35)
	assert.False(t, first.HasPrev)
	last := NewPage(Request{PageNumber: 4, PageSize: 10}, 35)
	assert.False(t, last.HasNext)
}

func TestNewPageEmptyResult(t *testing.T) {
	page := NewPage(Request{PageNumber: 1, PageSize: 10}, 0)
	assert.Equal(t, 0, page.TotalPages)
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrev)
}

func TestNewPageExactMultiple(t *testing.T) {
	page := NewPage(Request{PageNumber: 3, PageSize: 10}, 30)
	assert.Equal(t, 3, page.TotalPages)
	assert.False(t, page.HasNext)
}
