// Package views 加载内嵌模板，页面交给 gin 渲染，片段直接输出 HTML
package views

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"time"

	"inkwell/internal/utils"
	"inkwell/web"

	"github.com/gin-contrib/multitemplate"
)

const templatesDir = "templates"

// Pages 每个页面模板 = 布局 + includes + 视图
var Pages = []string{
	"posts/index.html",
	"posts/group_list.html",
	"posts/profile.html",
	"posts/post_detail.html",
	"posts/create_post.html",
	"posts/follow.html",
	"posts/groups.html",
	"auth/login.html",
	"auth/signup.html",
	"auth/logged_out.html",
	"about/author.html",
	"about/tech.html",
	"core/404.html",
	"core/error.html",
}

// Views holds the page renderer for gin and the fragment set.
type Views struct {
	Renderer  multitemplate.Renderer
	fragments *template.Template
}

// Load parses all templates from the embedded filesystem.
func Load() (*Views, error) {
	return LoadFS(web.FS)
}

func LoadFS(fsys fs.FS) (*Views, error) {
	layouts, err := fs.Glob(fsys, templatesDir+"/layouts/*.html")
	if err != nil {
		return nil, err
	}
	includes, err := fs.Glob(fsys, templatesDir+"/includes/*.html")
	if err != nil {
		return nil, err
	}

	r := multitemplate.NewRenderer()
	for _, name := range Pages {
		files := make([]string, 0, len(layouts)+len(includes)+1)
		files = append(files, layouts...)
		files = append(files, includes...)
		files = append(files, templatesDir+"/views/"+name)

		tmpl, err := template.New(path.Base(files[0])).Funcs(FuncMap()).ParseFS(fsys, files...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.Add(name, tmpl)
	}

	fragments, err := template.New("fragments").Funcs(FuncMap()).ParseFS(fsys, includes...)
	if err != nil {
		return nil, fmt.Errorf("parse fragments: %w", err)
	}
	return &Views{Renderer: r, fragments: fragments}, nil
}

// Fragment 渲染 includes 中定义的命名模板，如 "feed"
func (v *Views) Fragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := v.fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render fragment %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

func FuncMap() template.FuncMap {
	return template.FuncMap{
		"dict": func(values ...any) (map[string]any, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"add": func(a, b int) int {
			return a + b
		},
		"timeAgo":    TimeAgo,
		"formatDate": FormatDate,
		"markdown":   utils.RenderMarkdown,
	}
}

// FormatDate 形如 2024年5月1日
func FormatDate(t time.Time) string {
	return t.Local().Format("2006年1月2日")
}

func TimeAgo(t time.Time) string {
	seconds := int(time.Since(t).Seconds())
	switch {
	case seconds < 60:
		return "刚刚"
	case seconds < 3600:
		return fmt.Sprintf("%d分钟前", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%d小时前", seconds/3600)
	case seconds < 2592000:
		return fmt.Sprintf("%d天前", seconds/86400)
	case seconds < 31536000:
		return fmt.Sprintf("%d个月前", seconds/2592000)
	}
	return fmt.Sprintf("%d年前", seconds/31536000)
}
