package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// The API only exposes these methods, so preflights advertise nothing more.
const corsAllowedMethods = "GET,POST,PATCH,OPTIONS"

const corsAllowedHeaders = "Origin,Content-Type,Accept,Authorization," +
	RequestIDHeader + "," + TraceIDHeader

// Response headers browsers need for correlation and client-side backoff.
const corsExposedHeaders = RequestIDHeader + "," + TraceIDHeader +
	",X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset,Retry-After"

// CORS applies this service's cross-origin policy. With an explicit origin
// list the matching origin is echoed back and credentials are allowed; a
// "*" entry allows every origin but, per the Fetch spec, without
// credentials. Origins not on the list get no CORS headers at all.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		origins[strings.TrimSuffix(origin, "/")] = true
	}

	return func(c *gin.Context) {
		// Responses differ per Origin, so caches must key on it.
		c.Writer.Header().Add("Vary", "Origin")

		origin := c.Request.Header.Get("Origin")
		switch {
		case origin == "":
			// Same-origin or non-browser request.
		case origins[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", corsAllowedMethods)
			c.Header("Access-Control-Allow-Headers", corsAllowedHeaders)
			c.Header("Access-Control-Max-Age", "86400")

			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Header("Access-Control-Expose-Headers", corsExposedHeaders)
		c.Next()
	}
}
