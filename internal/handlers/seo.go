package handlers

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/db"
	"inkwell/internal/models"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
)

type SEOHandler struct {
	cfg *config.Config
}

func NewSEOHandler(cfg *config.Config) *SEOHandler {
	return &SEOHandler{cfg: cfg}
}

// RobotsTxt 返回 robots.txt
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /

# 禁止爬取需要登录的页面
Disallow: /create/
Disallow: /follow/
Disallow: /auth/
Disallow: /*/edit/

Sitemap: %s/sitemap.xml
`, h.cfg.SiteURL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

// SitemapXML 动态生成 sitemap.xml
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	ctx := c.Request.Context()
	siteURL := h.cfg.SiteURL
	now := time.Now().Format("2006-01-02")

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`)
	writeURL := func(loc, lastmod, changefreq string, priority float64) {
		fmt.Fprintf(&b, `  <url>
    <loc>%s</loc>
    <lastmod>%s</lastmod>
    <changefreq>%s</changefreq>
    <priority>%.1f</priority>
  </url>
`, html.EscapeString(loc), lastmod, changefreq, priority)
	}

	writeURL(siteURL+"/", now, "hourly", 1.0)
	writeURL(siteURL+"/groups/", now, "weekly", 0.8)

	var groups []models.Group
	db.DB.WithContext(ctx).Order("slug ASC").Find(&groups)
	for _, g := range groups {
		writeURL(siteURL+"/group/"+url.PathEscape(g.Slug)+"/", now, "daily", 0.7)
	}

	// 最近的帖子，限制 500 篇
	var posts []models.Post
	db.DB.WithContext(ctx).Order(models.Newest).Limit(500).Find(&posts)
	for _, post := range posts {
		priority, changefreq := 0.6, "weekly"
		if time.Since(post.CreatedAt) < 7*24*time.Hour {
			priority, changefreq = 0.8, "daily"
		}
		writeURL(fmt.Sprintf("%s/posts/%d/", siteURL, post.ID), post.UpdatedAt.Format("2006-01-02"), changefreq, priority)
	}

	b.WriteString(`</urlset>`)

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// RSSFeed 最新 20 篇帖子的 RSS 2.0
func (h *SEOHandler) RSSFeed(c *gin.Context) {
	siteURL := h.cfg.SiteURL

	var posts []models.Post
	db.DB.WithContext(c.Request.Context()).
		Preload("Author").Preload("Group").
		Order(models.Newest).Limit(20).Find(&posts)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>Inkwell</title>
    <link>` + siteURL + `/</link>
    <description>Inkwell 最新帖子</description>
    <language>zh-CN</language>
    <lastBuildDate>` + time.Now().Format(time.RFC1123Z) + `</lastBuildDate>
    <atom:link href="` + siteURL + `/feed.xml" rel="self" type="application/rss+xml"/>
`)

	for _, post := range posts {
		link := fmt.Sprintf("%s/posts/%d/", siteURL, post.ID)
		content := truncateByParagraph(string(utils.RenderMarkdown(post.Text)), 3)
		if src := post.ImageSrc(); src != "" {
			if strings.HasPrefix(src, "/") {
				src = siteURL + src
			}
			content = `<p><img src="` + html.EscapeString(src) + `" alt=""></p>` + content
		}

		b.WriteString(`    <item>
      <title>` + escapeXML(post.Excerpt()) + `</title>
      <link>` + link + `</link>
      <description><![CDATA[` + strings.ReplaceAll(content, "]]>", "]]&gt;") + `]]></description>
      <author>` + escapeXML(post.Author.Username) + `</author>
`)
		if post.Group != nil {
			b.WriteString(`      <category>` + escapeXML(post.Group.Title) + `</category>
`)
		}
		b.WriteString(`      <pubDate>` + post.CreatedAt.Format(time.RFC1123Z) + `</pubDate>
      <guid isPermaLink="true">` + link + `</guid>
    </item>
`)
	}

	b.WriteString(`  </channel>
</rss>`)

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// escapeXML 转义XML特殊字符
func escapeXML(s string) string {
	return html.EscapeString(s)
}

var blockRe = regexp.MustCompile(`(?s)(<(?:p|div|h[1-6]|ul|ol|blockquote|pre)[^>]*>.*?</(?:p|div|h[1-6]|ul|ol|blockquote|pre)>)`)

// truncateByParagraph 按段落截取HTML，保留前几个完整块级元素
func truncateByParagraph(content string, maxBlocks int) string {
	matches := blockRe.FindAllString(content, maxBlocks)
	if len(matches) == 0 {
		return content
	}
	return strings.Join(matches, "\n")
}
