package admin

import (
	"fmt"

	"inkwell/internal/cache"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "页面缓存",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "清空首页缓存",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.CacheBackend != "redis" {
			fmt.Fprintln(cmd.OutOrStdout(), "内存缓存位于服务进程中，重启服务即可清空")
			return nil
		}
		redisStore, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisStore.Close()

		if err := redisStore.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "缓存已清空")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	RootCmd.AddCommand(cacheCmd)
}
