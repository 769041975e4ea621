package admin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"inkwell/internal/db"
	"inkwell/internal/models"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "管理分组",
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有分组",
	Args:  cobra.NoArgs,
	RunE:  listGroups,
}

var (
	groupTitle       string
	groupSlug        string
	groupDescription string
)

var groupsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "新建分组",
	Args:  cobra.NoArgs,
	RunE:  addGroup,
}

var groupsDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "删除分组，帖子保留但不再属于任何分组",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteGroup,
}

func init() {
	groupsAddCmd.Flags().StringVar(&groupTitle, "title", "", "分组名称")
	groupsAddCmd.Flags().StringVar(&groupSlug, "slug", "", "URL 中使用的唯一标识")
	groupsAddCmd.Flags().StringVar(&groupDescription, "description", "", "分组描述")
	_ = groupsAddCmd.MarkFlagRequired("title")
	_ = groupsAddCmd.MarkFlagRequired("slug")

	groupsCmd.AddCommand(groupsListCmd, groupsAddCmd, groupsDeleteCmd)
	RootCmd.AddCommand(groupsCmd)
}

func listGroups(cmd *cobra.Command, args []string) error {
	if err := connect(); err != nil {
		return err
	}

	var groups []models.Group
	if err := db.DB.Order("slug ASC").Find(&groups).Error; err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"ID", "Slug", "Title", "Posts"})
	for _, g := range groups {
		var posts int64
		db.DB.Model(&models.Post{}).Where("group_id = ?", g.ID).Count(&posts)
		table.Append([]string{strconv.Itoa(int(g.ID)), g.Slug, g.Title, strconv.FormatInt(posts, 10)})
	}
	table.Render()
	return nil
}

func addGroup(cmd *cobra.Command, args []string) error {
	if err := connect(); err != nil {
		return err
	}

	title := strings.TrimSpace(groupTitle)
	slug := strings.TrimSpace(groupSlug)
	if title == "" || slug == "" {
		return errors.New("--title 和 --slug 不能为空")
	}
	if len([]rune(title)) > 200 || len(slug) > 50 {
		return errors.New("名称最多 200 个字符，slug 最多 50 个字符")
	}

	group := models.Group{Title: title, Slug: slug, Description: groupDescription}
	if err := db.DB.Create(&group).Error; err != nil {
		return fmt.Errorf("create group %q: %w", slug, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "已创建分组 %s (id=%d)\n", group.Slug, group.ID)
	return nil
}

func deleteGroup(cmd *cobra.Command, args []string) error {
	if err := connect(); err != nil {
		return err
	}

	var group models.Group
	if err := db.DB.Where("slug = ?", args[0]).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("分组 %q 不存在", args[0])
		}
		return err
	}
	if err := db.DB.Delete(&group).Error; err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "已删除分组 %s\n", group.Slug)
	return nil
}
