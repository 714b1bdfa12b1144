package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	maxAge         = "600"
)

// New returns a CORS middleware. With an empty origin list every origin is
// accepted; otherwise only the configured origins get the allow header.
// Preflight requests are answered directly with 204.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowlist := newOriginAllowlist(allowedOrigins)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		h.Set("Access-Control-Max-Age", maxAge)

		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && allowlist.allows(origin):
			h.Set("Access-Control-Allow-Origin", origin)
		case origin == "" && allowlist.open():
			h.Set("Access-Control-Allow-Origin", "*")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type originAllowlist map[string]struct{}

func newOriginAllowlist(origins []string) originAllowlist {
	set := make(originAllowlist, len(origins))
	for _, origin := range origins {
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return set
}

func (a originAllowlist) open() bool {
	return len(a) == 0
}

func (a originAllowlist) allows(origin string) bool {
	if a.open() {
		return true
	}
	_, ok := a[strings.TrimRight(origin, "/")]
	return ok
}
