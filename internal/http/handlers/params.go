package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/custrisk-backend/internal/http/response"
	"github.com/yungbote/custrisk-backend/internal/platform/apierr"
	"github.com/yungbote/custrisk-backend/internal/services"
)

type pageQuery struct {
	Skip  *int `form:"skip" binding:"omitempty,min=0"`
	Limit *int `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (q pageQuery) page() services.Page {
	p := services.Page{}
	if q.Skip != nil {
		p.Skip = *q.Skip
	}
	if q.Limit != nil {
		p.Limit = *q.Limit
	}
	return p
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := uuid.Parse(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", apierr.BadRequest("invalid_id", "%s must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		ae := response.BindError(err)
		response.RespondError(c, ae.Status, ae.Code, ae)
		return false
	}
	return true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		ae := response.BindError(err)
		response.RespondError(c, ae.Status, ae.Code, ae)
		return false
	}
	return true
}

// dateTimeLayouts are tried in order. Layouts without a zone are read as UTC.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// isoTime accepts RFC 3339 timestamps as well as zone-less ISO datetimes and plain dates.
type isoTime struct {
	time.Time
}

func (t *isoTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("datetime must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range dateTimeLayouts {
		if v, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("datetime %q is not ISO 8601", raw)
}

func (t *isoTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
