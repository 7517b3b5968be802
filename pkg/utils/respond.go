package utils

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"reelcms/internal/apperr"
)

// RespondError writes {"error": ...} with the status for err's kind. Server
// side failures are logged with their full detail; the body carries only
// the safe message.
func RespondError(c *gin.Context, logger *slog.Logger, err error) {
	status := apperr.Status(err)
	if status >= 500 {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("kind", apperr.KindOf(err).String()),
			slog.String("error", err.Error()),
		)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}
