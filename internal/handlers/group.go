package handlers

import (
	"net/http"

	"inkwell/internal/db"
	"inkwell/internal/models"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct{}

func NewGroupHandler() *GroupHandler {
	return &GroupHandler{}
}

// GroupSummary 分组及其帖子数
type GroupSummary struct {
	models.Group
	PostCount int64
}

// ListGroups 展示所有分组
func (h *GroupHandler) ListGroups(c *gin.Context) {
	var groups []models.Group
	if err := db.DB.WithContext(c.Request.Context()).Order("title ASC").Find(&groups).Error; err != nil {
		ServerError(c, err)
		return
	}

	type countRow struct {
		GroupID uint
		Count   int64
	}
	var rows []countRow
	db.DB.WithContext(c.Request.Context()).Model(&models.Post{}).
		Select("group_id, COUNT(*) as count").
		Where("group_id IS NOT NULL").
		Group("group_id").
		Scan(&rows)
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.GroupID] = r.Count
	}

	summaries := make([]GroupSummary, len(groups))
	for i, g := range groups {
		summaries[i] = GroupSummary{Group: g, PostCount: counts[g.ID]}
	}

	Render(c, http.StatusOK, "posts/groups.html", gin.H{
		"Groups": summaries,
	})
}
