package handlers

import (
	"net/http"
	"net/url"

	"inkwell/internal/logging"
	"inkwell/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user
	}
	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// RenderError 渲染错误页
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "core/error.html", gin.H{"Error": message})
}

// NotFound 404 页面，也用作 NoRoute
func NotFound(c *gin.Context) {
	Render(c, http.StatusNotFound, "core/404.html", nil)
}

// ServerError 记录错误并返回 500
func ServerError(c *gin.Context, err error) {
	_ = c.Error(err)
	logging.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	RenderError(c, http.StatusInternalServerError, "服务器内部错误，请稍后再试")
}

func profileURL(username string) string {
	return "/profile/" + url.PathEscape(username) + "/"
}
