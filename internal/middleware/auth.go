package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"student-records/internal/access"
	"student-records/internal/util"
)

const (
	principalKey = "principal"
	tokenCookie  = "srm_token"
)

// Verifier resolves an access token to a principal.
type Verifier interface {
	Verify(token string) (*access.Principal, error)
}

// AuthMiddleware 校验访问令牌，并在 context 里放入当前调用者。
// 依次读取 Authorization 头、?token= 查询参数（下载场景）、srm_token cookie。
func AuthMiddleware(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenStr string

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenStr = strings.TrimSpace(parts[1])
			}
		}
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			if cookie, err := c.Cookie(tokenCookie); err == nil {
				tokenStr = cookie
			}
		}

		p, err := v.Verify(tokenStr)
		if err != nil {
			util.Fail(c, err)
			c.Abort()
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// Principal returns the authenticated caller, nil when there is none.
func Principal(c *gin.Context) *access.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*access.Principal)
	return p
}

// Origin describes where the request came from.
func Origin(c *gin.Context) access.Origin {
	return access.Origin{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
