package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Params carries parsed paging and ordering query parameters.
type Params struct {
	Page     int
	PageSize int
	OrderBy  string
	Desc     bool
}

// Parse reads page, page_size and ordering from the request. Ordering uses a
// leading dash for descending order (ordering=-amount). page_size is clamped
// to maxSize.
func Parse(c *fiber.Ctx, defaultSize, maxSize int, orderFields map[string]bool) (Params, error) {
	p := Params{Page: 1, PageSize: defaultSize}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return Params{}, fmt.Errorf("invalid page %q", raw)
		}
		p.Page = page
	}

	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return Params{}, fmt.Errorf("invalid page_size %q", raw)
		}
		if size > maxSize {
			size = maxSize
		}
		p.PageSize = size
	}

	if ordering := c.Query("ordering"); ordering != "" {
		field := ordering
		if strings.HasPrefix(ordering, "-") {
			p.Desc = true
			field = ordering[1:]
		}
		if !orderFields[field] {
			return Params{}, fmt.Errorf("unsupported ordering field %q", field)
		}
		p.OrderBy = field
	}

	return p, nil
}

// Pages returns the number of pages needed for total items, at least 1.
func Pages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Response shapes a paginated list body with results, navigation links and
// pagination metadata.
func Response(c *fiber.Ctx, p Params, total int64, results any) fiber.Map {
	pages := Pages(total, p.PageSize)

	var next, prev any
	if p.Page < pages {
		next = pageURL(c, p.Page+1)
	}
	if p.Page > 1 {
		prev = pageURL(c, p.Page-1)
	}

	return fiber.Map{
		"results": results,
		"links": fiber.Map{
			"first": pageURL(c, 1),
			"last":  pageURL(c, pages),
			"next":  next,
			"prev":  prev,
		},
		"meta": fiber.Map{
			"pagination": fiber.Map{
				"count": total,
				"page":  p.Page,
				"pages": pages,
			},
		},
	}
}

func pageURL(c *fiber.Ctx, page int) string {
	values := url.Values{}
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		values.Set(string(k), string(v))
	})
	values.Set("page", strconv.Itoa(page))
	return c.BaseURL() + string(c.Request().URI().Path()) + "?" + values.Encode()
}
