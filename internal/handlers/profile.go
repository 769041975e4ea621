package handlers

import (
	"errors"
	"net/http"

	"inkwell/internal/config"
	"inkwell/internal/db"
	"inkwell/internal/logging"
	"inkwell/internal/metrics"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ProfileHandler struct {
	cfg *config.Config
}

func NewProfileHandler(cfg *config.Config) *ProfileHandler {
	return &ProfileHandler{cfg: cfg}
}

// loadAuthor 按 :username 查找用户，找不到时已经写好 404
func loadAuthor(c *gin.Context) (*models.User, bool) {
	var author models.User
	err := db.DB.WithContext(c.Request.Context()).Where("username = ?", c.Param("username")).First(&author).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c)
		} else {
			ServerError(c, err)
		}
		return nil, false
	}
	return &author, true
}

func (h *ProfileHandler) Profile(c *gin.Context) {
	author, ok := loadAuthor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	posts, page, err := listPosts(ctx, h.cfg.PageSize, c.Query("page"), byAuthor(author.ID))
	if err != nil {
		ServerError(c, err)
		return
	}

	viewer := middleware.CurrentUser(c)
	showFollow := viewer != nil && viewer.ID != author.ID
	following := false
	if showFollow {
		var count int64
		db.DB.WithContext(ctx).Model(&models.Follow{}).
			Where("user_id = ? AND author_id = ?", viewer.ID, author.ID).
			Count(&count)
		following = count > 0
	}

	Render(c, http.StatusOK, "posts/profile.html", gin.H{
		"Author":     author,
		"Posts":      posts,
		"Page":       page,
		"PostCount":  page.Total,
		"ShowFollow": showFollow,
		"Following":  following,
	})
}

// Follow 关注自己时什么也不做，重复关注只保留一条
func (h *ProfileHandler) Follow(c *gin.Context) {
	author, ok := loadAuthor(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	if user.ID != author.ID {
		follow := models.Follow{UserID: user.ID, AuthorID: author.ID}
		result := db.DB.WithContext(c.Request.Context()).
			Where(&models.Follow{UserID: user.ID, AuthorID: author.ID}).
			FirstOrCreate(&follow)
		if result.Error != nil {
			ServerError(c, result.Error)
			return
		}
		if result.RowsAffected > 0 {
			metrics.ContentCreated.WithLabelValues("follow").Inc()
			logging.Info().Str("user", user.Username).Str("author", author.Username).Msg("Followed author")
		}
	}

	c.Redirect(http.StatusFound, profileURL(author.Username))
}

func (h *ProfileHandler) Unfollow(c *gin.Context) {
	author, ok := loadAuthor(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	err := db.DB.WithContext(c.Request.Context()).
		Where("user_id = ? AND author_id = ?", user.ID, author.ID).
		Delete(&models.Follow{}).Error
	if err != nil {
		ServerError(c, err)
		return
	}

	c.Redirect(http.StatusFound, profileURL(author.Username))
}
