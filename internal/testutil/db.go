// Package testutil 测试用的数据库与数据工厂
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"inkwell/internal/db"
	"inkwell/internal/models"
	"inkwell/internal/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Password is the plain password of every user made by CreateUser.
const Password = "correct-horse-42"

// NewDB 打开独立的内存 sqlite 库并迁移，同时替换全局 db.DB
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	conn, err := db.Open("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	prev := db.DB
	db.DB = conn
	t.Cleanup(func() {
		db.DB = prev
		_ = sqlDB.Close()
	})
	return conn
}

// CreateUser inserts a user whose password is Password.
func CreateUser(t *testing.T, conn *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(Password)
	require.NoError(t, err)

	user := &models.User{Username: username, Email: username + "@example.com", Password: hash}
	require.NoError(t, conn.Create(user).Error)
	return user
}

func CreateGroup(t *testing.T, conn *gorm.DB, slug string) *models.Group {
	t.Helper()
	group := &models.Group{Title: "分组 " + slug, Slug: slug, Description: "描述 " + slug}
	require.NoError(t, conn.Create(group).Error)
	return group
}

// CreatePost inserts a post; group may be nil.
func CreatePost(t *testing.T, conn *gorm.DB, author *models.User, group *models.Group, text string) *models.Post {
	t.Helper()
	post := &models.Post{Text: text, AuthorID: author.ID}
	if group != nil {
		post.GroupID = &group.ID
	}
	require.NoError(t, conn.Create(post).Error)
	return post
}
