package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeprecatedRoute marks an endpoint as deprecated with sunset date.
type DeprecatedRoute struct {
	Path        string    // Route pattern, e.g. /v1/devices/:id/location
	SunsetDate  time.Time // Date when endpoint will be removed
	Alternative string    // Recommended alternative endpoint (optional), may use the same params
}

// deprecatedRoutes lists the aliases kept for older clients.
var deprecatedRoutes = []DeprecatedRoute{
	{
		Path:        "/v1/devices/:id/location",
		SunsetDate:  time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC),
		Alternative: "/v1/devices/:id/fixes/latest",
	},
}

// DeprecationMiddleware adds Deprecation, Sunset, and Link headers to deprecated endpoints.
// This helps clients migrate gracefully to newer API versions.
func DeprecationMiddleware(deprecated []DeprecatedRoute) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, d := range deprecated {
			params, ok := matchPattern(path, d.Path)
			if !ok {
				continue
			}

			// RFC 8594 Deprecation header
			c.Set("Deprecation", "true")

			// RFC 8594 Sunset header (HTTP-Date format)
			c.Set("Sunset", d.SunsetDate.UTC().Format(time.RFC1123))

			// RFC 8288 Link header with the successor
			if d.Alternative != "" {
				c.Set("Link", fmt.Sprintf(`<%s>; rel="successor-version"`, expandPattern(d.Alternative, params)))
			}

			days := time.Until(d.SunsetDate).Hours() / 24
			c.Set("Warning", fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))
			break
		}

		return c.Next()
	}
}

// matchPattern matches path against a route pattern with :param segments
// and returns the captured params.
func matchPattern(path, pattern string) (map[string]string, bool) {
	if path == pattern {
		return nil, true
	}

	ps := strings.Split(strings.Trim(path, "/"), "/")
	qs := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(ps) != len(qs) {
		return nil, false
	}

	params := make(map[string]string)
	for i, q := range qs {
		switch {
		case strings.HasPrefix(q, ":"):
			if ps[i] == "" {
				return nil, false
			}
			params[q[1:]] = ps[i]
		case q != ps[i]:
			return nil, false
		}
	}
	return params, true
}

// expandPattern fills :param segments of pattern from params.
func expandPattern(pattern string, params map[string]string) string {
	segs := strings.Split(pattern, "/")
	for i, s := range segs {
		if v, ok := params[strings.TrimPrefix(s, ":")]; ok && strings.HasPrefix(s, ":") {
			segs[i] = v
		}
	}
	return strings.Join(segs, "/")
}
