package admin

import (
	"errors"
	"fmt"
	"strconv"

	"inkwell/internal/db"
	"inkwell/internal/models"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "管理用户",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有用户",
	Args:  cobra.NoArgs,
	RunE:  listUsers,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "删除用户及其帖子、评论和关注",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteUser,
}

func init() {
	usersCmd.AddCommand(usersListCmd, usersDeleteCmd)
	RootCmd.AddCommand(usersCmd)
}

func listUsers(cmd *cobra.Command, args []string) error {
	if err := connect(); err != nil {
		return err
	}

	var users []models.User
	if err := db.DB.Order("id ASC").Find(&users).Error; err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"ID", "Username", "Email", "Posts", "Joined"})
	for _, u := range users {
		var posts int64
		db.DB.Model(&models.Post{}).Where("author_id = ?", u.ID).Count(&posts)
		table.Append([]string{
			strconv.Itoa(int(u.ID)),
			u.Username,
			u.Email,
			strconv.FormatInt(posts, 10),
			u.CreatedAt.Format("2006-01-02"),
		})
	}
	table.Render()
	return nil
}

func deleteUser(cmd *cobra.Command, args []string) error {
	if err := connect(); err != nil {
		return err
	}

	var user models.User
	if err := db.DB.Where("username = ?", args[0]).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("用户 %q 不存在", args[0])
		}
		return err
	}
	if err := db.DB.Delete(&user).Error; err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "已删除用户 %s\n", user.Username)
	return nil
}
