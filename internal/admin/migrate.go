package admin

import (
	"fmt"

	"inkwell/internal/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "执行数据库迁移",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connect(); err != nil {
			return err
		}
		if err := db.Migrate(db.DB); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "迁移完成")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
