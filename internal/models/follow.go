package models

import (
	"time"
)

// Follow 关注关系：UserID 关注了 AuthorID
// (user_id, author_id) 唯一，自我关注由 handler 拦截
type Follow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_follow_user_author" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AuthorID  uint      `gorm:"not null;index;uniqueIndex:idx_follow_user_author" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
