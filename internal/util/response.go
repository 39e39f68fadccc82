package util

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// 通用返回结构里的 data 使用 map
type Response map[string]interface{}

// 业务错误码，和 HTTP 状态码一起返回
const (
	CodeOK           = 0
	CodeInvalidParam = 40001
	CodeAuth         = 40101
	CodeForbidden    = 40301
	CodeNotFound     = 40401
	CodeConflict     = 40901
	CodeServerErr    = 50001
	CodeUpstream     = 50301
)

// Success 统一成功返回
func Success(c *gin.Context, data Response) {
	c.JSON(http.StatusOK, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Created 同 Success，状态码 201
func Created(c *gin.Context, data Response) {
	c.JSON(http.StatusCreated, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Error 统一错误返回
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}

// Fail 按错误类型映射状态码和业务码；校验错误附带字段原因
func Fail(c *gin.Context, err error) {
	status, code := StatusOf(KindOf(err))

	msg := "internal server error"
	var e *AppError
	if errors.As(err, &e) {
		msg = e.Message
	}

	body := gin.H{
		"code":    code,
		"message": msg,
	}
	if e != nil && len(e.Fields) > 0 {
		body["errors"] = e.Fields
	}
	c.JSON(status, body)
}

// StatusOf 返回错误类型对应的 HTTP 状态码和业务码
func StatusOf(k Kind) (int, int) {
	switch k {
	case KindValidation:
		return http.StatusBadRequest, CodeInvalidParam
	case KindUnauthenticated:
		return http.StatusUnauthorized, CodeAuth
	case KindForbidden:
		return http.StatusForbidden, CodeForbidden
	case KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case KindConflict:
		return http.StatusConflict, CodeConflict
	case KindUpstream:
		return http.StatusServiceUnavailable, CodeUpstream
	default:
		return http.StatusInternalServerError, CodeServerErr
	}
}
