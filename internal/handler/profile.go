package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"student-records/internal/middleware"
	"student-records/internal/util"
)

type ChangePasswordReq struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ChangePassword changes the caller's own password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	p := middleware.Principal(c)
	if p == nil {
		util.Fail(c, util.Unauthenticated("authentication required"))
		return
	}
	var req ChangePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "oldPassword and newPassword are required")
		return
	}
	if err := h.Auth.ChangePassword(c.Request.Context(), p.UserID, req.OldPassword, req.NewPassword); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"message": "password changed"})
}
