package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Params represents pagination parameters
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// Meta represents pagination metadata
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

const (
	// MaxLimit is the maximum number of items per page
	MaxLimit = 100
	// MaxPage bounds the page number so the offset stays in range.
	MaxPage = 1_000_000
)

// New normalises page and limit, using defaultLimit when limit is unset.
func New(page, limit, defaultLimit int) Params {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// FromQuery extracts pagination parameters from the request.
func FromQuery(c *gin.Context, defaultLimit int) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	return New(page, limit, defaultLimit)
}

// MetaFor calculates pagination metadata
func MetaFor(p Params, total int64) Meta {
	if p.Limit < 1 {
		p = New(p.Page, p.Limit, 1)
	}
	totalPages := int(total) / p.Limit
	if int(total)%p.Limit > 0 {
		totalPages++
	}
	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}
