package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/apierr"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

const internalMessage = "internal server error"

// Classify maps an error to an HTTP status and a stable code.
func Classify(err error) (int, string) {
	var ae *apierr.Error
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &ae) && ae.Status != 0:
		return ae.Status, ae.Code
	case errors.Is(err, types.ErrOracleTimeout):
		return http.StatusGatewayTimeout, "oracle_timeout"
	case errors.Is(err, types.ErrOracleUnavailable):
		return http.StatusBadGateway, "oracle_unavailable"
	case errors.Is(err, types.ErrInvalidRiskLevel):
		return http.StatusBadRequest, "invalid_risk_level"
	case errors.Is(err, types.ErrInvalidType):
		return http.StatusBadRequest, "invalid_type"
	case errors.Is(err, types.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, types.ErrInvalidState):
		return http.StatusBadRequest, "invalid_state"
	case errors.Is(err, types.ErrInvalidValue):
		return http.StatusBadRequest, "invalid_value"
	case errors.Is(err, types.ErrPredictionFailed):
		return http.StatusBadGateway, "prediction_failed"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// RespondDomainError writes the envelope for err. 5xx bodies never carry the
// underlying error text.
func RespondDomainError(c *gin.Context, log *logger.Logger, err error) {
	status, code := Classify(err)
	if status >= http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", "route", c.FullPath(), "status", status, "code", code, "error", err)
		}
		if status == http.StatusInternalServerError {
			RespondError(c, status, code, errors.New(internalMessage))
			return
		}
	}
	RespondError(c, status, code, err)
}

// BindError renders a gin binding failure as a 400 with field-level detail.
func BindError(err error) *apierr.Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, describeField(fe))
		}
		return apierr.New(http.StatusBadRequest, "invalid_request", errors.New(strings.Join(parts, "; ")))
	}
	return apierr.New(http.StatusBadRequest, "invalid_request", err)
}

func describeField(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a UUID", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
