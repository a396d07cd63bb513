package util

import (
	"errors"
	"math"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
)

const MaxPageSize = 100

var ErrInvalidPage = errors.New("Invalid page.")

// Page is the paginated list envelope
type Page struct {
	Count    int64       `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

// Pagination holds the resolved page parameters of a list request
type Pagination struct {
	Page     int
	PageSize int
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ParsePagination reads ?page= and ?page_size=. A malformed page is an error;
// a malformed page_size falls back to the default and is capped at MaxPageSize.
func ParsePagination(c *gin.Context, defaultSize int) (Pagination, error) {
	p := Pagination{Page: 1, PageSize: defaultSize}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return p, ErrInvalidPage
		}
		p.Page = page
	}

	if raw := c.Query("page_size"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 {
			p.PageSize = size
		}
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.PageSize < 1 {
		p.PageSize = 1
	}

	// Offset and next-page arithmetic must not overflow
	if p.Page >= math.MaxInt/p.PageSize {
		return p, ErrInvalidPage
	}
	return p, nil
}

// NewPage builds the envelope. Pages past the last one are invalid, except
// the first page of an empty result.
func NewPage(c *gin.Context, p Pagination, count int64, results interface{}) (*Page, error) {
	if p.Page > 1 && int64(p.Offset()) >= count {
		return nil, ErrInvalidPage
	}

	page := &Page{Count: count, Results: results}
	if int64(p.Page*p.PageSize) < count {
		next := pageURL(c, p.Page+1)
		page.Next = &next
	}
	if p.Page > 1 {
		prev := pageURL(c, p.Page-1)
		page.Previous = &prev
	}
	return page, nil
}

func pageURL(c *gin.Context, page int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	query := c.Request.URL.Query()
	if page == 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: query.Encode(),
	}
	return u.String()
}
