package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Cursor contains sequence-cursor pagination info.
type Cursor struct {
	Since   uint64 `json:"since"`
	Next    uint64 `json:"next"`
	Limit   int    `json:"limit"`
	HasMore bool   `json:"has_more"`
}

// SetCursorLinkHeaders adds RFC 8288 Link headers for cursor-paginated
// responses. It uses the current request path.
func SetCursorLinkHeaders(c *fiber.Ctx, p Cursor) {
	base := c.Path()
	var links []string

	// first
	links = append(links, fmt.Sprintf(`<%s?since=0&limit=%d>; rel="first"`, base, p.Limit))

	// next
	if p.HasMore {
		links = append(links, fmt.Sprintf(`<%s?since=%d&limit=%d>; rel="next"`, base, p.Next, p.Limit))
	}

	c.Set("Link", strings.Join(links, ", "))
}
