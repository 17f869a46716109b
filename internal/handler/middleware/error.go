package middleware

import (
	"log/slog"
	"net/http"

	"storefront/internal/handler/httperr"
	"storefront/internal/pkg/errs"

	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logServerErrors(c)

		if c.Writer.Written() {
			return
		}
		// Search backward through the error stack
		for i := len(c.Errors) - 1; i >= 0; i-- {
			err := c.Errors[i]

			if err.IsType(gin.ErrorTypePublic) {
				if resp, ok := err.Meta.(httperr.Response); ok {
					c.JSON(resp.Status, resp)
					return
				}
			}
		}
		if status := c.Writer.Status(); status != http.StatusOK {
			c.Status(status)
			c.Writer.WriteHeaderNow()
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Internal server error"}})
	}
}

// logServerErrors records the cause of 5xx responses with enough stack
// context to debug them; 4xx outcomes are the caller's problem.
func logServerErrors(c *gin.Context) {
	if c.Writer.Status() < http.StatusInternalServerError || len(c.Errors) == 0 {
		return
	}
	last := c.Errors[len(c.Errors)-1]
	slog.Error("request failed",
		"request_id", GetRequestID(c),
		"path", c.Request.URL.Path,
		"error", last.Err.Error(),
		"stack", errs.ExtractStackLines(last.Err, 8))
}

func CustomRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("recovered from panic", "error", err, "path", c.Request.URL.Path)

				resp := httperr.Response{Status: http.StatusInternalServerError}
				resp.Error.Message = "Internal server error"

				c.JSON(http.StatusInternalServerError, resp)
				c.Abort()
			}
		}()
		c.Next()
	}
}
