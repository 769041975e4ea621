package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/db"
	"inkwell/internal/logging"
	"inkwell/internal/metrics"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/services"
	"inkwell/internal/utils"
	"inkwell/internal/views"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type PostHandler struct {
	cfg     *config.Config
	cache   cache.Store
	storage services.ImageStorage
	views   *views.Views
}

func NewPostHandler(cfg *config.Config, store cache.Store, storage services.ImageStorage, v *views.Views) *PostHandler {
	return &PostHandler{cfg: cfg, cache: store, storage: storage, views: v}
}

// IndexCacheKey 首页某一页的缓存键
func IndexCacheKey(page int) string {
	return fmt.Sprintf("feed:index:page:%d", page)
}

// fillCommentCounts 批量填充帖子的评论数量
func fillCommentCounts(ctx context.Context, posts []models.Post) {
	if len(posts) == 0 {
		return
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	type CountResult struct {
		PostID uint
		Count  int
	}
	var results []CountResult
	db.DB.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&results)

	countMap := make(map[uint]int, len(results))
	for _, r := range results {
		countMap[r.PostID] = r.Count
	}
	for i := range posts {
		posts[i].CommentCount = countMap[posts[i].ID]
	}
}

func byGroup(groupID uint) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("group_id = ?", groupID)
	}
}

func byAuthor(authorID uint) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("author_id = ?", authorID)
	}
}

// followedBy 只保留 userID 关注的作者的帖子
func followedBy(userID uint) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		sub := tx.Session(&gorm.Session{NewDB: true}).
			Model(&models.Follow{}).Select("author_id").Where("user_id = ?", userID)
		return tx.Where("author_id IN (?)", sub)
	}
}

// listPosts 按时间倒序分页查询，rawPage 为 ?page= 原始值
func listPosts(ctx context.Context, pageSize int, rawPage string, scopes ...func(*gorm.DB) *gorm.DB) ([]models.Post, utils.Page, error) {
	var total int64
	if err := db.DB.WithContext(ctx).Model(&models.Post{}).Scopes(scopes...).Count(&total).Error; err != nil {
		return nil, utils.Page{}, fmt.Errorf("count posts: %w", err)
	}
	page := utils.Paginate(rawPage, total, pageSize)

	var posts []models.Post
	err := db.DB.WithContext(ctx).Scopes(scopes...).
		Preload("Author").Preload("Group").
		Order(models.Newest).
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&posts).Error
	if err != nil {
		return nil, page, fmt.Errorf("list posts: %w", err)
	}
	fillCommentCounts(ctx, posts)
	return posts, page, nil
}

// Index 全站最新帖子，列表片段按页缓存 INDEX_CACHE_TTL
func (h *PostHandler) Index(c *gin.Context) {
	ctx := c.Request.Context()
	raw := c.Query("page")
	key := IndexCacheKey(max(utils.StringToInt(raw), 1))

	feed, ok := h.cache.Get(ctx, key)
	if !ok {
		posts, page, err := listPosts(ctx, h.cfg.PageSize, raw)
		if err != nil {
			ServerError(c, err)
			return
		}
		html, err := h.views.Fragment("feed", gin.H{"Posts": posts, "Page": page})
		if err != nil {
			ServerError(c, err)
			return
		}
		feed = string(html)
		h.cache.Set(ctx, key, feed, h.cfg.IndexCacheTTL)
	}

	Render(c, http.StatusOK, "posts/index.html", gin.H{
		"Feed": template.HTML(feed),
	})
}

func (h *PostHandler) GroupPosts(c *gin.Context) {
	ctx := c.Request.Context()

	var group models.Group
	if err := db.DB.WithContext(ctx).Where("slug = ?", c.Param("slug")).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c)
			return
		}
		ServerError(c, err)
		return
	}

	posts, page, err := listPosts(ctx, h.cfg.PageSize, c.Query("page"), byGroup(group.ID))
	if err != nil {
		ServerError(c, err)
		return
	}
	Render(c, http.StatusOK, "posts/group_list.html", gin.H{
		"Group": group,
		"Posts": posts,
		"Page":  page,
	})
}

// FollowIndex 当前用户关注的作者的帖子
func (h *PostHandler) FollowIndex(c *gin.Context) {
	user := middleware.CurrentUser(c)
	posts, page, err := listPosts(c.Request.Context(), h.cfg.PageSize, c.Query("page"), followedBy(user.ID))
	if err != nil {
		ServerError(c, err)
		return
	}
	Render(c, http.StatusOK, "posts/follow.html", gin.H{
		"Posts": posts,
		"Page":  page,
	})
}

// loadPost 按路径参数 :id 查找帖子，找不到时已经写好 404
func loadPost(c *gin.Context, preload ...string) (*models.Post, bool) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		NotFound(c)
		return nil, false
	}
	tx := db.DB.WithContext(c.Request.Context())
	for _, p := range preload {
		tx = tx.Preload(p)
	}
	var post models.Post
	if err := tx.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c)
		} else {
			ServerError(c, err)
		}
		return nil, false
	}
	return &post, true
}

func (h *PostHandler) Detail(c *gin.Context) {
	post, ok := loadPost(c, "Author", "Group")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var comments []models.Comment
	if err := db.DB.WithContext(ctx).Preload("Author").
		Where("post_id = ?", post.ID).
		Order(models.Newest).
		Find(&comments).Error; err != nil {
		ServerError(c, err)
		return
	}

	var postCount int64
	db.DB.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", post.AuthorID).Count(&postCount)

	Render(c, http.StatusOK, "posts/post_detail.html", gin.H{
		"Post":      post,
		"Comments":  comments,
		"PostCount": postCount,
	})
}

func (h *PostHandler) groups(ctx context.Context) []models.Group {
	var groups []models.Group
	db.DB.WithContext(ctx).Order("title ASC").Find(&groups)
	return groups
}

func (h *PostHandler) renderForm(c *gin.Context, post *models.Post, form PostForm, errs FormErrors) {
	data := gin.H{
		"Form":   form,
		"Errors": errs,
		"Groups": h.groups(c.Request.Context()),
		"IsEdit": post != nil,
	}
	if post != nil {
		data["PostID"] = post.ID
		data["CurrentImage"] = post.ImageSrc()
	}
	Render(c, http.StatusOK, "posts/create_post.html", data)
}

// resolveGroup 空值表示不选分组，未知 id 是校验错误
func resolveGroup(ctx context.Context, raw string) (*uint, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	id, ok := utils.ParseID(raw)
	if !ok {
		return nil, false
	}
	var group models.Group
	if err := db.DB.WithContext(ctx).Select("id").First(&group, id).Error; err != nil {
		return nil, false
	}
	return &group.ID, true
}

// bindPost 校验表单并保存上传的图片，image 为空表示没有上传
func (h *PostHandler) bindPost(c *gin.Context) (form PostForm, groupID *uint, image string, errs FormErrors) {
	errs = FormErrors{}
	if err := c.ShouldBind(&form); err != nil {
		errs = bindErrors(err)
	}

	groupID, ok := resolveGroup(c.Request.Context(), form.Group)
	if !ok {
		if _, exists := errs["group"]; !exists {
			errs["group"] = "请选择有效的分组"
		}
	}
	if len(errs) > 0 {
		return form, nil, "", errs
	}

	header, err := c.FormFile("image")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
			errs["image"] = "图片上传失败"
		}
		return form, groupID, "", errs
	}
	image, err = h.storage.Save(c.Request.Context(), header)
	switch {
	case errors.Is(err, services.ErrNotImage):
		errs["image"] = "请上传有效的图片，支持 gif、png、jpeg、webp"
	case errors.Is(err, services.ErrImageTooLarge):
		errs["image"] = fmt.Sprintf("图片不能超过 %d MB", h.cfg.MaxUploadMB)
	case err != nil:
		logging.Error().Err(err).Msg("Failed to store image")
		errs["image"] = "图片保存失败"
	}
	return form, groupID, image, errs
}

func (h *PostHandler) ShowCreate(c *gin.Context) {
	h.renderForm(c, nil, PostForm{}, FormErrors{})
}

func (h *PostHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)

	form, groupID, image, errs := h.bindPost(c)
	if len(errs) > 0 {
		h.renderForm(c, nil, form, errs)
		return
	}

	post := models.Post{
		Text:     form.Text,
		Image:    image,
		GroupID:  groupID,
		AuthorID: user.ID,
	}
	if err := db.DB.WithContext(c.Request.Context()).Create(&post).Error; err != nil {
		ServerError(c, err)
		return
	}
	metrics.ContentCreated.WithLabelValues("post").Inc()
	logging.Info().Uint("post_id", post.ID).Str("author", user.Username).Str("excerpt", post.Excerpt()).Msg("Post created")

	c.Redirect(http.StatusFound, profileURL(user.Username))
}

// authorPost 只有作者本人可以编辑，其他人跳回详情页
func authorPost(c *gin.Context) (*models.Post, bool) {
	post, ok := loadPost(c)
	if !ok {
		return nil, false
	}
	if post.AuthorID != middleware.CurrentUser(c).ID {
		c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", post.ID))
		return nil, false
	}
	return post, true
}

func (h *PostHandler) ShowEdit(c *gin.Context) {
	post, ok := authorPost(c)
	if !ok {
		return
	}
	form := PostForm{Text: post.Text}
	if post.GroupID != nil {
		form.Group = fmt.Sprint(*post.GroupID)
	}
	h.renderForm(c, post, form, FormErrors{})
}

func (h *PostHandler) Update(c *gin.Context) {
	post, ok := authorPost(c)
	if !ok {
		return
	}

	form, groupID, image, errs := h.bindPost(c)
	if len(errs) > 0 {
		h.renderForm(c, post, form, errs)
		return
	}

	updates := map[string]any{
		"text":     form.Text,
		"group_id": groupID,
	}
	if image != "" {
		updates["image"] = image
	}
	if err := db.DB.WithContext(c.Request.Context()).Model(post).Updates(updates).Error; err != nil {
		ServerError(c, err)
		return
	}
	logging.Info().Uint("post_id", post.ID).Msg("Post updated")

	c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", post.ID))
}

// AddComment 空评论直接忽略
func (h *PostHandler) AddComment(c *gin.Context) {
	post, ok := loadPost(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	var form CommentForm
	_ = c.ShouldBind(&form)
	text := strings.TrimSpace(form.Text)
	if text != "" {
		comment := models.Comment{PostID: post.ID, AuthorID: user.ID, Text: text}
		if err := db.DB.WithContext(c.Request.Context()).Create(&comment).Error; err != nil {
			ServerError(c, err)
			return
		}
		metrics.ContentCreated.WithLabelValues("comment").Inc()
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", post.ID))
}
