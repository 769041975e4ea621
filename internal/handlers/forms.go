package handlers

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// PostForm 发帖和编辑共用
type PostForm struct {
	Text  string `form:"text" binding:"required,notblank"`
	Group string `form:"group" binding:"omitempty,numeric"`
}

type CommentForm struct {
	Text string `form:"text"`
}

type SignupForm struct {
	Username  string `form:"username" binding:"required,max=150,username"`
	FirstName string `form:"first_name" binding:"max=150"`
	LastName  string `form:"last_name" binding:"max=150"`
	Email     string `form:"email" binding:"omitempty,email,max=254"`
	Password1 string `form:"password1" binding:"required,min=8,max=128"`
	Password2 string `form:"password2" binding:"required,eqfield=Password1"`
}

type LoginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`
}

// FormErrors 字段名 -> 错误信息，"form" 为整体错误
type FormErrors map[string]string

var (
	usernameRe   = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)
	validateOnce sync.Once
)

// setupValidator 注册自定义规则，错误字段名取 form 标签
func setupValidator() {
	validateOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernameRe.MatchString(fl.Field().String())
		})
	})
}

func init() {
	setupValidator()
}

// bindErrors 把 validator 的错误转换成页面上显示的中文提示
func bindErrors(err error) FormErrors {
	errs := FormErrors{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["form"] = "提交的数据无效"
		return errs
	}
	for _, fe := range verrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs[fe.Field()] = fieldMessage(fe)
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "这是必填字段"
	case "max":
		return "不能超过 " + fe.Param() + " 个字符"
	case "min":
		return "至少需要 " + fe.Param() + " 个字符"
	case "email":
		return "请输入有效的邮箱地址"
	case "numeric":
		return "请选择有效的选项"
	case "eqfield":
		return "两次输入的密码不一致"
	case "username":
		return "只能包含字母、数字和 @/./+/-/_"
	}
	return "输入无效"
}
