package apiresp

import (
	"net/http"

	"PChat/logger"
	"PChat/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error writes err as a CodeError body. Errors without a code are logged and
// reported as ErrServerInternal so internals never reach the client.
func Error(c *gin.Context, err error) {
	code, status := resolve(c, err)
	c.JSON(status, code)
}

// Abort is Error plus c.Abort.
func Abort(c *gin.Context, err error) {
	code, status := resolve(c, err)
	c.AbortWithStatusJSON(status, code)
}

func resolve(c *gin.Context, err error) (*errs.CodeError, int) {
	if ce, ok := errs.AsCodeError(err); ok {
		status := errs.HTTPStatus(ce.Code)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		return ce, status
	}
	logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	return &errs.ErrServerInternal, http.StatusInternalServerError
}
