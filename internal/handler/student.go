package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"student-records/internal/filestore"
	"student-records/internal/store"
	"student-records/internal/service"
	"student-records/internal/util"
)

const photoField = "profilePhoto"

// StudentHandler serves the roster endpoints.
type StudentHandler struct {
	Students *service.StudentService
	Files    *filestore.Store
	Paging   Paging
}

func NewStudentHandler(svc *service.StudentService, files *filestore.Store, paging Paging) *StudentHandler {
	return &StudentHandler{Students: svc, Files: files, Paging: paging}
}

// ListStudents supports ?search= (name substring), ?className=, ?gender=,
// ?page= and ?limit=.
func (h *StudentHandler) ListStudents(c *gin.Context) {
	page, size := h.Paging.pageParams(c, store.DefaultPageSize)
	f := store.StudentFilter{
		Name:      c.Query("search"),
		ClassName: c.Query("className"),
		Gender:    c.Query("gender"),
	}
	res, err := h.Students.List(c.Request.Context(), caller(c), f, page, size)
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

func (h *StudentHandler) GetStudent(c *gin.Context) {
	st, err := h.Students.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"student": st})
}

// CreateStudent accepts JSON or multipart form data with an optional
// profilePhoto file.
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	var in store.StudentInput
	if err := h.bind(c, &in); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	photo, err := h.savePhoto(c)
	if err != nil {
		util.Fail(c, err)
		return
	}
	if photo != "" {
		in.ProfilePhotoURL = photo
	}

	st, err := h.Students.Create(c.Request.Context(), caller(c), in)
	if err != nil {
		h.discard(photo)
		util.Fail(c, err)
		return
	}
	util.Created(c, util.Response{"student": st})
}

func (h *StudentHandler) UpdateStudent(c *gin.Context) {
	var patch store.StudentPatch
	if err := h.bind(c, &patch); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	photo, err := h.savePhoto(c)
	if err != nil {
		util.Fail(c, err)
		return
	}
	if photo != "" {
		patch.ProfilePhotoURL = &photo
	}
	if patch.Empty() {
		util.Fail(c, util.Invalid("no fields to update"))
		return
	}

	st, err := h.Students.Update(c.Request.Context(), caller(c), c.Param("id"), patch)
	if err != nil {
		h.discard(photo)
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"student": st})
}

func (h *StudentHandler) DeleteStudent(c *gin.Context) {
	st, err := h.Students.Delete(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"id": st.ID})
}

// Analytics returns the total and per-class and per-gender counts.
func (h *StudentHandler) Analytics(c *gin.Context) {
	a, err := h.Students.Analytics(c.Request.Context(), caller(c))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{
		"total":       a.Total,
		"perClass":    a.PerClass,
		"genderRatio": a.GenderRatio,
	})
}

func (h *StudentHandler) bind(c *gin.Context, obj interface{}) error {
	if strings.HasPrefix(c.ContentType(), "multipart/") || c.ContentType() == binding.MIMEPOSTForm {
		return c.ShouldBindWith(obj, binding.Form)
	}
	return c.ShouldBindJSON(obj)
}

// savePhoto stores the optional uploaded photo and returns its reference.
func (h *StudentHandler) savePhoto(c *gin.Context) (string, error) {
	if h.Files == nil || !strings.HasPrefix(c.ContentType(), "multipart/") {
		return "", nil
	}
	fh, err := c.FormFile(photoField)
	if err != nil {
		return "", nil
	}
	if fh.Size > h.Files.MaxBytes {
		return "", util.Invalid("file too large", util.FieldError{Field: photoField, Reason: "must be at most 2 MiB"})
	}
	f, err := fh.Open()
	if err != nil {
		return "", util.Upstream("open upload", err)
	}
	defer f.Close()
	return h.Files.Save(f)
}

func (h *StudentHandler) discard(ref string) {
	if h.Files != nil && ref != "" {
		_ = h.Files.Remove(ref)
	}
}
