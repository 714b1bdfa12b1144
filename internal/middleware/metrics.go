package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushub/campus-hub-api/internal/service"
)

// Metrics observes request duration and status per route. The route template
// keeps label cardinality bounded; unmatched paths collapse into one label.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
