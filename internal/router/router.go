package router

import (
	"io/fs"
	"net/http"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/handlers"
	"inkwell/internal/metrics"
	"inkwell/internal/middleware"
	"inkwell/internal/services"
	"inkwell/internal/views"
	"inkwell/web"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// Deps 路由需要的依赖，由 main 组装
type Deps struct {
	Config  *config.Config
	Cache   cache.Store
	Storage services.ImageStorage
	Views   *views.Views
}

// New 创建 gin 引擎：中间件、静态资源、路由
func New(deps Deps) *gin.Engine {
	cfg := deps.Config

	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(metrics.Middleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   14 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("inkwell_session", store))

	r.HTMLRender = deps.Views.Renderer

	// Static Assets
	staticFS, err := fs.Sub(web.FS, "static")
	if err != nil {
		panic(err)
	}
	r.StaticFS("/static", http.FS(staticFS))
	if _, local := deps.Storage.(*services.LocalStorage); local {
		r.Static("/media", cfg.MediaRoot)
	}
	r.GET("/metrics", metrics.Handler())

	r.Use(middleware.LoadUser())

	RegisterRoutes(r, deps)
	r.NoRoute(handlers.NotFound)

	return r
}

func RegisterRoutes(r *gin.Engine, deps Deps) {
	// Handlers
	postHandler := handlers.NewPostHandler(deps.Config, deps.Cache, deps.Storage, deps.Views)
	profileHandler := handlers.NewProfileHandler(deps.Config)
	authHandler := handlers.NewAuthHandler()
	aboutHandler := handlers.NewAboutHandler()
	groupHandler := handlers.NewGroupHandler()
	seoHandler := handlers.NewSEOHandler(deps.Config)

	// 公共路由 (Public Routes)
	r.GET("/", postHandler.Index)                        // 首页 - 最新帖子（缓存）
	r.GET("/groups/", groupHandler.ListGroups)           // 所有分组
	r.GET("/group/:slug/", postHandler.GroupPosts)       // 分组下的帖子
	r.GET("/profile/:username/", profileHandler.Profile) // 用户主页
	r.GET("/posts/:id/", postHandler.Detail)             // 帖子详情
	r.GET("/about/author/", aboutHandler.Author)         // 关于作者
	r.GET("/about/tech/", aboutHandler.Tech)             // 技术栈

	// SEO
	r.GET("/robots.txt", seoHandler.RobotsTxt)
	r.GET("/sitemap.xml", seoHandler.SitemapXML)
	r.GET("/feed.xml", seoHandler.RSSFeed)

	auth := r.Group("/auth")
	{
		auth.GET("/signup/", authHandler.ShowSignup) // 注册页面
		auth.POST("/signup/", authHandler.Signup)    // 提交注册
		auth.GET("/login/", authHandler.ShowLogin)   // 登录页面
		auth.POST("/login/", authHandler.Login)      // 提交登录
		auth.GET("/logout/", authHandler.Logout)     // 退出登录
	}

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/create/", postHandler.ShowCreate)                      // 发帖页面
		authorized.POST("/create/", postHandler.Create)                         // 提交发帖
		authorized.GET("/posts/:id/edit/", postHandler.ShowEdit)                // 编辑页面
		authorized.POST("/posts/:id/edit/", postHandler.Update)                 // 提交编辑
		authorized.POST("/posts/:id/comment/", postHandler.AddComment)          // 发表评论
		authorized.GET("/follow/", postHandler.FollowIndex)                     // 关注的作者的帖子
		authorized.GET("/profile/:username/follow/", profileHandler.Follow)     // 关注
		authorized.GET("/profile/:username/unfollow/", profileHandler.Unfollow) // 取消关注
	}
}
