package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"student-records/internal/middleware"
	"student-records/internal/service"
)

// Paging holds the default and maximum page sizes.
type Paging struct {
	Default int
	Max     int
}

func caller(c *gin.Context) service.Caller {
	return service.Caller{Principal: middleware.Principal(c), Origin: middleware.Origin(c)}
}

// pageParams reads ?page= and ?limit= (also ?page_size=). Bad values fall
// back to the defaults, sizes are clamped to 1..Max.
func (pg Paging) pageParams(c *gin.Context, defSize int) (int, int) {
	if pg.Default > 0 {
		defSize = pg.Default
	}
	maxSize := pg.Max
	if maxSize <= 0 {
		maxSize = 100
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	raw := c.Query("limit")
	if raw == "" {
		raw = c.Query("page_size")
	}
	size, err := strconv.Atoi(raw)
	switch {
	case err != nil || size <= 0:
		size = defSize
	case size > maxSize:
		size = maxSize
	}
	return page, size
}
