package audit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MaxymChyncha/house-security-system/pkg/errors"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// Querier reads audit entries. *Manager implements it.
type Querier interface {
	Query(ctx context.Context, filter QueryFilter) ([]*AuditLog, error)
}

// Handler serves the audit trail over HTTP
type Handler struct {
	querier Querier
}

// NewHandler creates a new audit handler
func NewHandler(querier Querier) *Handler {
	return &Handler{querier: querier}
}

// List returns audit entries, newest first
// GET /audit?actor_id=&target_type=&target_id=&event_type=&result=&since=&until=&limit=&offset=
func (h *Handler) List(c *gin.Context) {
	filter, fieldErrs := parseQueryFilter(c)
	if len(fieldErrs) > 0 {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	logs, err := h.querier.Query(c.Request.Context(), filter)
	if err != nil {
		appErr := errors.Internal("failed to read audit log", err)
		c.JSON(appErr.Status, appErr)
		return
	}
	if logs == nil {
		logs = []*AuditLog{}
	}

	c.JSON(http.StatusOK, logs)
}

func parseQueryFilter(c *gin.Context) (QueryFilter, errors.FieldErrors) {
	filter := QueryFilter{
		TargetType: c.Query("target_type"),
		EventType:  c.Query("event_type"),
		Result:     c.Query("result"),
		Limit:      defaultQueryLimit,
	}
	fieldErrs := errors.FieldErrors{}

	parseInt := func(name string, dest *int64) {
		if raw := c.Query(name); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v <= 0 {
				fieldErrs[name] = "A valid integer is required."
				return
			}
			*dest = v
		}
	}
	parseTime := func(name string, dest *time.Time) {
		if raw := c.Query(name); raw != "" {
			v, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				fieldErrs[name] = "Datetime has wrong format. Use RFC 3339."
				return
			}
			*dest = v
		}
	}

	parseInt("actor_id", &filter.ActorID)
	parseInt("target_id", &filter.TargetID)
	parseTime("since", &filter.StartTime)
	parseTime("until", &filter.EndTime)

	var limit, offset int64
	parseInt("limit", &limit)
	parseInt("offset", &offset)
	if limit > 0 {
		filter.Limit = int(min(limit, maxQueryLimit))
	}
	filter.Offset = int(offset)

	return filter, fieldErrs
}
