package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"student-records/internal/service"
	"student-records/internal/util"
	"student-records/internal/workbook"
)

const maxWorkbookBytes = 10 << 20

type ImportExportHandler struct {
	Students *service.StudentService
}

func NewImportExportHandler(svc *service.StudentService) *ImportExportHandler {
	return &ImportExportHandler{Students: svc}
}

// ExportXLSX downloads every student as an xlsx workbook.
func (h *ImportExportHandler) ExportXLSX(c *gin.Context) {
	data, err := h.Students.Export(c.Request.Context(), caller(c))
	if err != nil {
		util.Fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"students_%s.xlsx\"",
		time.Now().Format("20060102")))
	c.Data(http.StatusOK, workbook.ContentType, data)
}

// ExportCSV downloads the same columns as CSV.
func (h *ImportExportHandler) ExportCSV(c *gin.Context) {
	data, err := h.Students.ExportCSV(c.Request.Context(), caller(c))
	if err != nil {
		util.Fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"students_%s.csv\"",
		time.Now().Format("20060102")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// ImportXLSX reads the multipart field "file" and imports its first sheet.
func (h *ImportExportHandler) ImportXLSX(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		util.Fail(c, util.Invalid("file required", util.FieldError{Field: "file", Reason: "is required"}))
		return
	}
	if fh.Size > maxWorkbookBytes {
		util.Fail(c, util.Invalid("file too large", util.FieldError{Field: "file", Reason: "must be at most 10 MiB"}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		util.Fail(c, util.Upstream("open upload", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxWorkbookBytes))
	if err != nil {
		util.Fail(c, util.Upstream("read upload", err))
		return
	}
	if mt := mimetype.Detect(data); !mt.Is(workbook.ContentType) && !mt.Is("application/zip") {
		util.Fail(c, util.Invalid("unsupported file type", util.FieldError{Field: "file", Reason: "must be an xlsx workbook, got " + mt.String()}))
		return
	}

	sum, err := h.Students.Import(c.Request.Context(), caller(c), data)
	if err != nil {
		if sum.Created > 0 || sum.Skipped > 0 {
			// partial import: the rows before the failure are committed
			status, code := util.StatusOf(util.KindOf(err))
			c.JSON(status, gin.H{"code": code, "message": "import stopped: " + err.Error(), "data": sum})
			return
		}
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{
		"created": sum.Created,
		"skipped": sum.Skipped,
		"errors":  sum.Errors,
	})
}
