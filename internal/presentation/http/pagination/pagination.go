// Package pagination implements page-number pagination for list endpoints.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/repository"
	"github.com/Additional-Code/ordertrack/pkg/errorbank"
)

const (
	pageParam     = "page"
	pageSizeParam = "page_size"
)

// Request is the page the client asked for.
type Request struct {
	Number int
	Size   int
}

// Window converts the request into a row window for repositories.
func (r Request) Window() repository.Page {
	return repository.Page{Limit: r.Size, Offset: (r.Number - 1) * r.Size}
}

// Page is the pagination metadata rendered alongside results.
type Page struct {
	Count    int
	Next     *string
	Previous *string
}

// Parse reads page and page_size from the query string. An unparsable page is an error;
// an unparsable page size falls back to the default and oversized values are capped.
func Parse(c echo.Context, cfg config.API) (Request, error) {
	req := Request{Number: 1, Size: cfg.PageSize}

	if raw := c.QueryParam(pageParam); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Request{}, invalidPage()
		}
		req.Number = n
	}

	if raw := c.QueryParam(pageSizeParam); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			req.Size = n
		}
	}
	if cfg.MaxPageSize > 0 && req.Size > cfg.MaxPageSize {
		req.Size = cfg.MaxPageSize
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	return req, nil
}

// Build assembles metadata for a page of count total results. Pages past the end, other than
// the first page of an empty result, are rejected.
func Build(c echo.Context, req Request, count int) (Page, error) {
	lastPage := 1
	if count > 0 {
		lastPage = (count + req.Size - 1) / req.Size
	}
	if req.Number > lastPage {
		return Page{}, invalidPage()
	}

	page := Page{Count: count}
	if req.Number < lastPage {
		next := pageURL(c, req.Number+1)
		page.Next = &next
	}
	if req.Number > 1 {
		prev := pageURL(c, req.Number-1)
		page.Previous = &prev
	}
	return page, nil
}

func pageURL(c echo.Context, number int) string {
	r := c.Request()
	u := *r.URL
	q := u.Query()
	if number <= 1 {
		q.Del(pageParam)
	} else {
		q.Set(pageParam, strconv.Itoa(number))
	}
	u.RawQuery = q.Encode()
	u.Scheme = c.Scheme()
	u.Host = r.Host
	return u.String()
}

func invalidPage() *errorbank.AppError {
	return errorbank.NotFound("Invalid page.")
}
