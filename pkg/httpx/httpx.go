// Package httpx holds the small pieces of response plumbing shared by
// the HTTP handlers. Response bodies themselves are literal per
// endpoint, so this package only carries the error-response helper,
// Fail, which maps an error to its status code and JSON body.
package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragserver/pkg/xerr"
	"ragserver/pkg/zlog"

	"go.uber.org/zap"
)

// ErrorBody is the JSON shape returned for every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Fail writes a CodeError to the response, logging the cause (if any)
// but never exposing it to the client.
func Fail(c *gin.Context, err error) {
	if ce, ok := xerr.As(err); ok {
		if ce.Cause != nil {
			zlog.Error("request failed", zap.String("kind", string(ce.Kind)), zap.Error(ce.Cause))
		}
		c.AbortWithStatusJSON(ce.HTTPStatus(), ErrorBody{Error: ce.Message})
		return
	}
	zlog.Error("unhandled error", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{Error: "internal error"})
}
