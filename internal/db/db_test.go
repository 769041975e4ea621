package db_test

import (
	"testing"

	"inkwell/internal/db"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := db.Open("oracle", "whatever")
	require.Error(t, err)
}

func TestDeletingAuthorCascades(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn, "author")
	reader := testutil.CreateUser(t, conn, "reader")
	post := testutil.CreatePost(t, conn, author, nil, "作者的帖子")

	require.NoError(t, conn.Create(&models.Comment{PostID: post.ID, AuthorID: reader.ID, Text: "评论"}).Error)
	require.NoError(t, conn.Create(&models.Comment{PostID: post.ID, AuthorID: author.ID, Text: "回复"}).Error)
	require.NoError(t, conn.Create(&models.Follow{UserID: reader.ID, AuthorID: author.ID}).Error)

	require.NoError(t, conn.Delete(author).Error)

	var posts, comments, follows int64
	conn.Model(&models.Post{}).Count(&posts)
	conn.Model(&models.Comment{}).Count(&comments)
	conn.Model(&models.Follow{}).Count(&follows)
	assert.Zero(t, posts)
	assert.Zero(t, comments)
	assert.Zero(t, follows)
}

func TestDeletingCommentAuthorKeepsPost(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn, "author")
	reader := testutil.CreateUser(t, conn, "reader")
	post := testutil.CreatePost(t, conn, author, nil, "帖子")
	require.NoError(t, conn.Create(&models.Comment{PostID: post.ID, AuthorID: reader.ID, Text: "评论"}).Error)

	require.NoError(t, conn.Delete(reader).Error)

	var comments int64
	conn.Model(&models.Comment{}).Count(&comments)
	assert.Zero(t, comments)

	var kept models.Post
	require.NoError(t, conn.First(&kept, post.ID).Error)
}

func TestDeletingGroupNullsPostGroup(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn, "author")
	group := testutil.CreateGroup(t, conn, "cats")
	post := testutil.CreatePost(t, conn, author, group, "关于猫")

	require.NoError(t, conn.Delete(group).Error)

	var reloaded models.Post
	require.NoError(t, conn.First(&reloaded, post.ID).Error)
	assert.Nil(t, reloaded.GroupID)
}

func TestDeletingPostRemovesComments(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn, "author")
	post := testutil.CreatePost(t, conn, author, nil, "帖子")
	require.NoError(t, conn.Create(&models.Comment{PostID: post.ID, AuthorID: author.ID, Text: "a"}).Error)

	require.NoError(t, conn.Delete(post).Error)

	var comments int64
	conn.Model(&models.Comment{}).Count(&comments)
	assert.Zero(t, comments)
}

func TestFollowPairIsUnique(t *testing.T) {
	conn := testutil.NewDB(t)
	a := testutil.CreateUser(t, conn, "a")
	b := testutil.CreateUser(t, conn, "b")

	require.NoError(t, conn.Create(&models.Follow{UserID: a.ID, AuthorID: b.ID}).Error)
	assert.Error(t, conn.Create(&models.Follow{UserID: a.ID, AuthorID: b.ID}).Error)
	// the reverse edge is a different pair
	assert.NoError(t, conn.Create(&models.Follow{UserID: b.ID, AuthorID: a.ID}).Error)
}

func TestGroupSlugIsUnique(t *testing.T) {
	conn := testutil.NewDB(t)
	testutil.CreateGroup(t, conn, "cats")
	assert.Error(t, conn.Create(&models.Group{Title: "其他", Slug: "cats"}).Error)
}
