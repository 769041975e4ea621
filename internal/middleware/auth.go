package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"inkwell/internal/db"
	"inkwell/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey = "user"
	SessionKey   = "user_id"
	LoginPath    = "/auth/login/"
)

// AuthRequired 未登录时跳转到登录页，并带上 next 参数
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoadUser retrieves user from session and sets to context
func LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(SessionKey)

		if userID != nil {
			var user models.User
			result := db.DB.WithContext(c.Request.Context()).First(&user, userID)
			if result.Error == nil {
				c.Set(CheckUserKey, &user)
			} else {
				// 用户已被删除
				session.Delete(SessionKey)
				_ = session.Save()
			}
		}
		c.Next()
	}
}

// CurrentUser returns the logged in user or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// LoginURL 生成 /auth/login/?next=/create/ 形式的地址，斜杠保持原样
func LoginURL(next string) string {
	if next == "" {
		return LoginPath
	}
	return LoginPath + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}

// SafeNext 只接受站内路径，否则返回 /
func SafeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
