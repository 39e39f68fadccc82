package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"student-records/internal/auth"
	"student-records/internal/middleware"
	"student-records/internal/util"
)

// AuthHandler serves the account endpoints.
type AuthHandler struct {
	Auth          *auth.Service
	AllowRegister bool
}

func NewAuthHandler(svc *auth.Service, allowRegister bool) *AuthHandler {
	return &AuthHandler{Auth: svc, AllowRegister: allowRegister}
}

// Register creates a teacher account.
func (h *AuthHandler) Register(c *gin.Context) {
	if !h.AllowRegister {
		util.Fail(c, util.Forbidden("registration is disabled"))
		return
	}
	var req auth.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	user, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Created(c, util.Response{
		"user": gin.H{"id": user.ID, "name": user.Name, "email": user.Email, "role": user.Role},
	})
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "email and password are required")
		return
	}
	sess, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, sessionResponse(sess))
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates the renewal credential and returns a new pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshReq
	_ = c.ShouldBindJSON(&req)
	sess, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, sessionResponse(sess))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshReq
	_ = c.ShouldBindJSON(&req)
	if err := h.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"message": "logged out"})
}

// Me returns the current account.
func (h *AuthHandler) Me(c *gin.Context) {
	p := middleware.Principal(c)
	if p == nil {
		util.Fail(c, util.Unauthenticated("authentication required"))
		return
	}
	user, err := h.Auth.User(c.Request.Context(), p.UserID)
	if err != nil {
		if util.IsKind(err, util.KindNotFound) {
			err = util.Unauthenticated("user no longer exists")
		}
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"user": user})
}

func sessionResponse(s auth.Session) util.Response {
	return util.Response{
		"accessToken":      s.AccessToken,
		"accessExpiresAt":  s.AccessExpiresAt,
		"refreshToken":     s.RenewalToken,
		"refreshExpiresAt": s.RenewalExpiresAt,
		"user":             gin.H{"id": s.User.ID, "name": s.User.Name, "email": s.User.Email, "role": s.User.Role},
	}
}
