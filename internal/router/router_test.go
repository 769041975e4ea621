package router

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/services"
	"inkwell/internal/testutil"
	"inkwell/internal/views"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testApp struct {
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	cache  cache.Store
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestApp(t *testing.T, opts ...func(*config.Config)) *testApp {
	t.Helper()
	conn := testutil.NewDB(t)

	cfg := config.Default()
	cfg.MediaRoot = t.TempDir()
	for _, opt := range opts {
		opt(cfg)
	}

	v, err := views.Load()
	require.NoError(t, err)
	store := cache.NewMemory(100)

	engine := New(Deps{
		Config:  cfg,
		Cache:   store,
		Storage: services.NewImageStorage(cfg),
		Views:   v,
	})
	return &testApp{engine: engine, db: conn, cfg: cfg, cache: store}
}

func (a *testApp) do(method, target string, body io.Reader, contentType string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) get(target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return a.do(http.MethodGet, target, nil, "", cookies)
}

func (a *testApp) postForm(target string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return a.do(http.MethodPost, target, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", cookies)
}

// login 通过登录表单拿到会话 cookie
func (a *testApp) login(t *testing.T, username string) []*http.Cookie {
	t.Helper()
	w := a.postForm("/auth/login/", url.Values{"username": {username}, "password": {testutil.Password}}, nil)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func (a *testApp) count(model any) int64 {
	var n int64
	a.db.Model(model).Count(&n)
	return n
}

func postCards(body string) int {
	return strings.Count(body, `class="post-card"`)
}

func TestCreatePost(t *testing.T) {
	app := newTestApp(t)
	author := testutil.CreateUser(t, app.db, "leo")
	group := testutil.CreateGroup(t, app.db, "cats")
	cookies := app.login(t, author.Username)

	before := app.count(&models.Post{})
	body, contentType := testutil.MultipartForm(t, map[string]string{
		"text":  "我的第一篇帖子",
		"group": fmt.Sprint(group.ID),
	}, "image", "cat.png", testutil.PNG(t))
	w := app.do(http.MethodPost, "/create/", body, contentType, cookies)

	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/profile/leo/", w.Header().Get("Location"))
	assert.Equal(t, before+1, app.count(&models.Post{}))

	var post models.Post
	require.NoError(t, app.db.Order("id DESC").First(&post).Error)
	assert.Equal(t, "我的第一篇帖子", post.Text)
	assert.Equal(t, author.ID, post.AuthorID)
	require.NotNil(t, post.GroupID)
	assert.Equal(t, group.ID, *post.GroupID)
	assert.Equal(t, "posts/cat.png", post.Image)

	media := app.get("/media/posts/cat.png", nil)
	assert.Equal(t, http.StatusOK, media.Code)
}

func TestCreatePostWithoutGroup(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "leo")
	cookies := app.login(t, "leo")

	w := app.postForm("/create/", url.Values{"text": {"没有分组"}, "group": {""}}, cookies)
	require.Equal(t, http.StatusFound, w.Code)

	var post models.Post
	require.NoError(t, app.db.First(&post).Error)
	assert.Nil(t, post.GroupID)
	assert.Empty(t, post.Image)
}

func TestCreatePostValidation(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "leo")
	cookies := app.login(t, "leo")

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"blank text", url.Values{"text": {"   "}}, "这是必填字段"},
		{"missing text", url.Values{}, "这是必填字段"},
		{"unknown group", url.Values{"text": {"hi"}, "group": {"999"}}, "请选择有效的分组"},
		{"bad group", url.Values{"text": {"hi"}, "group": {"abc"}}, "请选择有效的选项"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.postForm("/create/", tt.form, cookies)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
			assert.Zero(t, app.count(&models.Post{}))
		})
	}
}

func TestCreatePostRejectsNonImage(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "leo")
	cookies := app.login(t, "leo")

	body, contentType := testutil.MultipartForm(t, map[string]string{"text": "带附件"}, "image", "notes.png", []byte("plain text"))
	w := app.do(http.MethodPost, "/create/", body, contentType, cookies)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "请上传有效的图片")
	assert.Contains(t, w.Body.String(), "带附件")
	assert.Zero(t, app.count(&models.Post{}))
}

func TestShowCreateForm(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "leo")
	testutil.CreateGroup(t, app.db, "cats")
	cookies := app.login(t, "leo")

	w := app.get("/create/", cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/create/"`)
	assert.Contains(t, w.Body.String(), "分组 cats")
}

func TestEditByAuthor(t *testing.T) {
	app := newTestApp(t)
	author := testutil.CreateUser(t, app.db, "leo")
	group := testutil.CreateGroup(t, app.db, "cats")
	post := testutil.CreatePost(t, app.db, author, nil, "原文")
	cookies := app.login(t, "leo")
	target := fmt.Sprintf("/posts/%d/edit/", post.ID)

	w := app.get(target, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "原文")

	w = app.postForm(target, url.Values{"text": {"修改后"}, "group": {fmt.Sprint(group.ID)}}, cookies)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var reloaded models.Post
	require.NoError(t, app.db.First(&reloaded, post.ID).Error)
	assert.Equal(t, "修改后", reloaded.Text)
	require.NotNil(t, reloaded.GroupID)
	assert.Equal(t, group.ID, *reloaded.GroupID)
	assert.Equal(t, int64(1), app.count(&models.Post{}))
}

func TestEditByNonAuthor(t *testing.T) {
	app := newTestApp(t)
	author := testutil.CreateUser(t, app.db, "leo")
	testutil.CreateUser(t, app.db, "mallory")
	post := testutil.CreatePost(t, app.db, author, nil, "原文")
	cookies := app.login(t, "mallory")
	target := fmt.Sprintf("/posts/%d/edit/", post.ID)
	detail := fmt.Sprintf("/posts/%d/", post.ID)

	w := app.get(target, cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	w = app.postForm(target, url.Values{"text": {"篡改"}}, cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	var reloaded models.Post
	require.NoError(t, app.db.First(&reloaded, post.ID).Error)
	assert.Equal(t, "原文", reloaded.Text)
}

func TestAnonymousRedirectsToLogin(t *testing.T) {
	app := newTestApp(t)
	author := testutil.CreateUser(t, app.db, "leo")
	post := testutil.CreatePost(t, app.db, author, nil, "原文")
	id := fmt.Sprint(post.ID)

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/create/"},
		{http.MethodPost, "/create/"},
		{http.MethodGet, "/posts/" + id + "/edit/"},
		{http.MethodPost, "/posts/" + id + "/edit/"},
		{http.MethodPost, "/posts/" + id + "/comment/"},
		{http.MethodGet, "/profile/leo/follow/"},
		{http.MethodGet, "/profile/leo/unfollow/"},
		{http.MethodGet, "/follow/"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			form := url.Values{"text": {"匿名"}}
			w := app.do(tt.method, tt.path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil)

			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "/auth/login/?next="+tt.path, w.Header().Get("Location"))
		})
	}

	assert.Equal(t, int64(1), app.count(&models.Post{}))
	assert.Zero(t, app.count(&models.Comment{}))
	assert.Zero(t, app.count(&models.Follow{}))

	var reloaded models.Post
	require.NoError(t, app.db.First(&reloaded, post.ID).Error)
	assert.Equal(t, "原文", reloaded.Text)
}

func TestNewPostAppearsInItsFeeds(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "leo")
	other := testutil.CreateUser(t, app.db, "mia")
	cats := testutil.CreateGroup(t, app.db, "cats")
	testutil.CreateGroup(t, app.db, "dogs")
	testutil.CreatePost(t, app.db, other, nil, "别人的帖子")
	cookies := app.login(t, "leo")

	w := app.postForm("/create/", url.Values{"text": {"猫咪日记"}, "group": {fmt.Sprint(cats.ID)}}, cookies)
	require.Equal(t, http.StatusFound, w.Code)

	for _, path := range []string{"/", "/group/cats/", "/profile/leo/"} {
		body := app.get(path, nil).Body.String()
		assert.Contains(t, body, "猫咪日记", path)
	}
	for _, path := range []string{"/group/dogs/", "/profile/mia/"} {
		w := app.get(path, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "猫咪日记", path)
	}
}

func TestPagination(t *testing.T) {
	const size, total = 10, 13
	app := newTestApp(t, func(cfg *config.Config) { cfg.PageSize = size })
	author := testutil.CreateUser(t, app.db, "leo")
	group := testutil.CreateGroup(t, app.db, "cats")
	for i := 0; i < total; i++ {
		testutil.CreatePost(t, app.db, author, group, fmt.Sprintf("帖子 %d", i))
	}

	for _, base := range []string{"/", "/group/cats/", "/profile/leo/"} {
		t.Run(base, func(t *testing.T) {
			first := app.get(base, nil).Body.String()
			assert.Equal(t, size, postCards(first))
			assert.Contains(t, first, "帖子 12")
			assert.NotContains(t, first, "帖子 0<")

			last := app.get(base+"?page=2", nil).Body.String()
			assert.Equal(t, total%size, postCards(last))

			assert.Equal(t, size, postCards(app.get(base+"?page=abc", nil).Body.String()))
			assert.Equal(t, total%size, postCards(app.get(base+"?page=99", nil).Body.String()))
		})
	}
}

func TestPaginationExactMultiple(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.PageSize = 3 })
	author := testutil.CreateUser(t, app.db, "leo")
	for i := 0; i < 6; i++ {
		testutil.CreatePost(t, app.db, author, nil, fmt.Sprintf("帖子 %d", i))
	}

	assert.Equal(t, 3, postCards(app.get("/profile/leo/?page=2", nil).Body.String()))
}

func TestIndexIsCached(t *testing.T) {
	app := newTestApp(t)
	author := testutil.CreateUser(t, app.db, "leo")
	testutil.CreatePost(t, app.db, author, nil, "旧帖子")

	before := app.get("/", nil)
	require.Equal(t, http.StatusOK, before.Code)

	testutil.CreatePost(t, app.db, author, nil, "新帖子")

	cached := app.get("/", nil)
	assert.Equal(t, before.Body.String(), cached.Body.String())

	require.NoError(t, app.cache.Clear(context.Background()))

	fresh := app.get("/", nil)
	assert.NotEqual(t, before.Body.String(), fresh.Body.String())
	assert.Contains(t, fresh.Body.String(), "新帖子")
}

func TestIndexCacheDoesNotLeakSession(t *testing.T) {
	app := newTestApp(t)
	author := testutil.CreateUser(t, app.db, "leo")
	testutil.CreatePost(t, app.db, author, nil, "帖子")
	cookies := app.login(t, "leo")

	loggedIn := app.get("/", cookies).Body.String()
	assert.Contains(t, loggedIn, "/auth/logout/")

	guest := app.get("/", nil).Body.String()
	assert.NotContains(t, guest, "/auth/logout/")
	assert.Contains(t, guest, "/auth/login/")
}

func TestFollowAndUnfollow(t *testing.T) {
	app := newTestApp(t)
	reader := testutil.CreateUser(t, app.db, "reader")
	testutil.CreateUser(t, app.db, "leo")
	cookies := app.login(t, "reader")

	w := app.get("/profile/leo/follow/", cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/leo/", w.Header().Get("Location"))
	assert.Equal(t, int64(1), app.count(&models.Follow{}))

	// following twice keeps one row
	app.get("/profile/leo/follow/", cookies)
	assert.Equal(t, int64(1), app.count(&models.Follow{}))

	profile := app.get("/profile/leo/", cookies).Body.String()
	assert.Contains(t, profile, "/profile/leo/unfollow/")

	w = app.get("/profile/reader/follow/", cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/reader/", w.Header().Get("Location"))
	var self int64
	app.db.Model(&models.Follow{}).Where("user_id = ? AND author_id = ?", reader.ID, reader.ID).Count(&self)
	assert.Zero(t, self)

	w = app.get("/profile/leo/unfollow/", cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/leo/", w.Header().Get("Location"))
	assert.Zero(t, app.count(&models.Follow{}))

	assert.Equal(t, http.StatusNotFound, app.get("/profile/nobody/follow/", cookies).Code)
}

func TestFollowFeedOnlyShowsFollowedAuthors(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "reader")
	leo := testutil.CreateUser(t, app.db, "leo")
	mia := testutil.CreateUser(t, app.db, "mia")
	testutil.CreatePost(t, app.db, leo, nil, "leo 的帖子")
	testutil.CreatePost(t, app.db, mia, nil, "mia 的帖子")
	cookies := app.login(t, "reader")

	empty := app.get("/follow/", cookies)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Zero(t, postCards(empty.Body.String()))

	app.get("/profile/leo/follow/", cookies)

	body := app.get("/follow/", cookies).Body.String()
	assert.Contains(t, body, "leo 的帖子")
	assert.NotContains(t, body, "mia 的帖子")
	assert.Equal(t, 1, postCards(body))
}

func TestPostDetailAndComments(t *testing.T) {
	app := newTestApp(t)
	author := testutil.CreateUser(t, app.db, "leo")
	testutil.CreateUser(t, app.db, "reader")
	post := testutil.CreatePost(t, app.db, author, nil, "正文 **加粗**")
	testutil.CreatePost(t, app.db, author, nil, "第二篇")
	detail := fmt.Sprintf("/posts/%d/", post.ID)

	w := app.get(detail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>加粗</strong>")
	assert.Contains(t, w.Body.String(), "帖子数: 2")
	assert.NotContains(t, w.Body.String(), `action="/posts/`)

	cookies := app.login(t, "reader")
	w = app.postForm(detail+"comment/", url.Values{"text": {"写得好"}}, cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))
	assert.Equal(t, int64(1), app.count(&models.Comment{}))

	w = app.postForm(detail+"comment/", url.Values{"text": {"  "}}, cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, int64(1), app.count(&models.Comment{}))

	page := app.get(detail, cookies).Body.String()
	assert.Contains(t, page, "写得好")
	assert.Contains(t, page, `action="/posts/`)
	assert.NotContains(t, page, detail+"edit/")

	assert.Equal(t, http.StatusNotFound, app.postForm("/posts/999/comment/", url.Values{"text": {"x"}}, cookies).Code)
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/posts/999/", "/posts/abc/", "/group/missing/", "/profile/nobody/", "/no/such/page/"} {
		w := app.get(path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, w.Body.String(), "404", path)
	}
}

func TestSignup(t *testing.T) {
	app := newTestApp(t)

	w := app.postForm("/auth/signup/", url.Values{
		"username":  {"newbie"},
		"email":     {"newbie@example.com"},
		"password1": {"long-enough-pw"},
		"password2": {"long-enough-pw"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/", w.Header().Get("Location"))

	var user models.User
	require.NoError(t, app.db.Where("username = ?", "newbie").First(&user).Error)
	assert.NotEqual(t, "long-enough-pw", user.Password)

	// signup logs the user in
	create := app.get("/create/", w.Result().Cookies())
	assert.Equal(t, http.StatusOK, create.Code)
}

func TestSignupValidation(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "taken")

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"mismatch", url.Values{"username": {"a"}, "password1": {"long-enough-pw"}, "password2": {"other-pw-123"}}, "两次输入的密码不一致"},
		{"taken", url.Values{"username": {"taken"}, "password1": {"long-enough-pw"}, "password2": {"long-enough-pw"}}, "该用户名已被占用"},
		{"short", url.Values{"username": {"b"}, "password1": {"short"}, "password2": {"short"}}, "至少需要 8 个字符"},
		{"bad username", url.Values{"username": {"has space"}, "password1": {"long-enough-pw"}, "password2": {"long-enough-pw"}}, "只能包含"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.postForm("/auth/signup/", tt.form, nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
	assert.Equal(t, int64(1), app.count(&models.User{}))
}

func TestLoginHonoursNext(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "leo")

	page := app.get("/auth/login/?next=/create/", nil)
	assert.Contains(t, page.Body.String(), `value="/create/"`)

	form := url.Values{"username": {"leo"}, "password": {testutil.Password}, "next": {"/create/"}}
	w := app.postForm("/auth/login/", form, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/create/", w.Header().Get("Location"))

	form.Set("next", "//evil.example/")
	w = app.postForm("/auth/login/", form, nil)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "leo")

	w := app.postForm("/auth/login/", url.Values{"username": {"leo"}, "password": {"nope"}}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "用户名或密码错误")
	assert.Empty(t, w.Result().Cookies())
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "leo")
	cookies := app.login(t, "leo")

	w := app.get("/auth/logout/", cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "你已退出登录")
	assert.NotContains(t, w.Body.String(), "/auth/logout/")

	after := app.get("/create/", w.Result().Cookies())
	assert.Equal(t, http.StatusFound, after.Code)
}

func TestStaticPages(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/about/author/", "/about/tech/", "/static/css/style.css", "/metrics"} {
		assert.Equal(t, http.StatusOK, app.get(path, nil).Code, path)
	}
	assert.Contains(t, app.get("/metrics", nil).Body.String(), "inkwell_http_requests_total")
}
