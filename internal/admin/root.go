// Package admin 运维命令行：分组、用户、缓存、迁移
package admin

import (
	"fmt"

	"inkwell/internal/config"
	"inkwell/internal/db"
	"inkwell/internal/logging"

	"github.com/spf13/cobra"
)

var cfg *config.Config

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           "inkwell-admin [command]",
	Short:         "Inkwell 运维工具",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cmd.ErrOrStderr()})
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// connect 打开数据库，db.DB 已经存在时直接复用
func connect() error {
	if db.DB != nil {
		return nil
	}
	conn, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	db.DB = conn
	return nil
}
