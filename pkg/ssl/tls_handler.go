// Package ssl supplies baseline security headers via unrolled/secure.
// This backend is reached over plain HTTP on a private network, so
// the middleware never forces a TLS redirect — it only hardens
// response headers.
package ssl

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// SecurityHeaders returns a gin middleware that sets frame-deny,
// no-sniff, and related headers on every response.
func SecurityHeaders() gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'self'",
	})
	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			return
		}
		c.Next()
	}
}
