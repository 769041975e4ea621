package handlers

import (
	"net/http"
	"strings"

	"inkwell/internal/db"
	"inkwell/internal/logging"
	"inkwell/internal/metrics"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

func (h *AuthHandler) ShowSignup(c *gin.Context) {
	Render(c, http.StatusOK, "auth/signup.html", gin.H{"Form": SignupForm{}, "Errors": FormErrors{}})
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var form SignupForm
	errs := FormErrors{}
	if err := c.ShouldBind(&form); err != nil {
		errs = bindErrors(err)
	}
	form.Username = strings.TrimSpace(form.Username)

	if _, bad := errs["username"]; !bad && form.Username != "" {
		var count int64
		db.DB.WithContext(c.Request.Context()).Model(&models.User{}).Where("username = ?", form.Username).Count(&count)
		if count > 0 {
			errs["username"] = "该用户名已被占用"
		}
	}
	if len(errs) > 0 {
		form.Password1, form.Password2 = "", ""
		Render(c, http.StatusOK, "auth/signup.html", gin.H{"Form": form, "Errors": errs})
		return
	}

	hash, err := utils.HashPassword(form.Password1)
	if err != nil {
		ServerError(c, err)
		return
	}
	user := models.User{
		Username:  form.Username,
		Email:     form.Email,
		Password:  hash,
		FirstName: form.FirstName,
		LastName:  form.LastName,
	}
	if err := db.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		ServerError(c, err)
		return
	}
	metrics.ContentCreated.WithLabelValues("user").Inc()
	logging.Info().Str("username", user.Username).Msg("User signed up")

	if err := login(c, &user); err != nil {
		ServerError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	Render(c, http.StatusOK, "auth/login.html", gin.H{"Next": c.Query("next")})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		Render(c, http.StatusOK, "auth/login.html", gin.H{
			"Error": "请输入用户名和密码", "Username": form.Username, "Next": form.Next,
		})
		return
	}

	var user models.User
	err := db.DB.WithContext(c.Request.Context()).Where("username = ?", strings.TrimSpace(form.Username)).First(&user).Error
	if err != nil || !utils.CheckPasswordHash(form.Password, user.Password) {
		Render(c, http.StatusOK, "auth/login.html", gin.H{
			"Error": "用户名或密码错误", "Username": form.Username, "Next": form.Next,
		})
		return
	}

	if err := login(c, &user); err != nil {
		ServerError(c, err)
		return
	}
	c.Redirect(http.StatusFound, middleware.SafeNext(form.Next))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.Set(middleware.CheckUserKey, nil)

	Render(c, http.StatusOK, "auth/logged_out.html", nil)
}

func login(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Set(middleware.SessionKey, user.ID)
	c.Set(middleware.CheckUserKey, user)
	return session.Save()
}
