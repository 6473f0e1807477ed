package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/custrisk-backend/internal/http/response"
	"github.com/yungbote/custrisk-backend/internal/platform/ctxutil"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

// Recovery turns a handler panic into a 500 envelope and logs the panic value.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if log != nil {
			fields := []interface{}{"path", c.Request.URL.Path, "panic", recovered}
			if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
				fields = append(fields, "request_id", td.RequestID)
			}
			log.Error("panic recovered", fields...)
		}
		response.RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal server error"))
	})
}
