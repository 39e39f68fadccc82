package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"student-records/internal/audit"
	"student-records/internal/service"
	"student-records/internal/util"
)

// LogHandler serves the audit trail.
type LogHandler struct {
	Audit  *service.AuditService
	Paging Paging
}

// NewLogHandler ignores paging.Default; the audit list has its own default.
func NewLogHandler(svc *service.AuditService, paging Paging) *LogHandler {
	return &LogHandler{Audit: svc, Paging: Paging{Max: paging.Max}}
}

// ListLogs lists audit entries newest first. Optional filters: ?action=,
// ?entityId=, ?start= and ?end= (YYYY-MM-DD, end inclusive).
func (h *LogHandler) ListLogs(c *gin.Context) {
	page, size := h.Paging.pageParams(c, audit.DefaultPageSize)

	f := audit.Filter{
		Action:   c.Query("action"),
		EntityID: c.Query("entityId"),
	}
	if s := c.Query("start"); s != "" {
		t, err := util.ParseDay(s)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "start must be YYYY-MM-DD")
			return
		}
		f.Start = t
	}
	if s := c.Query("end"); s != "" {
		t, err := util.ParseDay(s)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "end must be YYYY-MM-DD")
			return
		}
		f.End = t.Add(24 * time.Hour)
	}

	res, err := h.Audit.List(c.Request.Context(), caller(c), f, page, size)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{
		"items":      res.Items,
		"page":       res.Page,
		"limit":      res.PageSize,
		"total":      res.Total,
		"totalPages": res.TotalPages,
	})
}
