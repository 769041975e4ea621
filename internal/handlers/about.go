package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type AboutHandler struct{}

func NewAboutHandler() *AboutHandler {
	return &AboutHandler{}
}

func (h *AboutHandler) Author(c *gin.Context) {
	Render(c, http.StatusOK, "about/author.html", nil)
}

func (h *AboutHandler) Tech(c *gin.Context) {
	Render(c, http.StatusOK, "about/tech.html", nil)
}
