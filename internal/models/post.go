package models

import (
	"strings"
	"time"
)

type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Image     string    `gorm:"size:255" json:"image"` // "posts/<name>" or an absolute URL
	GroupID   *uint     `gorm:"index" json:"group_id"`
	Group     *Group    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"group,omitempty"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	CommentCount int `gorm:"-" json:"comment_count"`
}

// Excerpt 前 15 个字符，用于标题与日志
func (p Post) Excerpt() string {
	runes := []rune(p.Text)
	if len(runes) > 15 {
		return string(runes[:15])
	}
	return p.Text
}

// ImageSrc 返回可直接放进 <img src> 的地址
func (p Post) ImageSrc() string {
	if p.Image == "" {
		return ""
	}
	if strings.HasPrefix(p.Image, "http://") || strings.HasPrefix(p.Image, "https://") || strings.HasPrefix(p.Image, "/") {
		return p.Image
	}
	return "/media/" + p.Image
}

// Newest 默认排序：最新的在前
const Newest = "created_at DESC, id DESC"
