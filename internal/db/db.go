package db

import (
	"fmt"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Models 所有需要迁移的模型
func Models() []any {
	return []any{
		&models.User{},
		&models.Group{},
		&models.Post{},
		&models.Comment{},
		&models.Follow{},
	}
}

// Init 连接数据库、迁移并写入初始分组，结果保存在 DB
func Init(cfg *config.Config) error {
	conn, err := Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	logging.Info().Str("driver", cfg.DBDriver).Msg("Database connection established")

	if err := Migrate(conn); err != nil {
		return err
	}
	logging.Info().Msg("Database migration completed")

	if cfg.SeedGroups {
		if err := seedGroups(conn); err != nil {
			return err
		}
	}

	DB = conn
	return nil
}

// Open 按驱动名打开连接：postgres, mysql, sqlite
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

// Migrate runs AutoMigrate for every model.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// sqlite needs foreign keys switched on per connection, otherwise the
// ON DELETE rules on the models are ignored.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func seedGroups(conn *gorm.DB) error {
	// 检查是否已有分组数据
	var count int64
	if err := conn.Model(&models.Group{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logging.Debug().Msg("Groups already seeded, skipping")
		return nil
	}

	groups := []models.Group{
		{Title: "随笔", Slug: "notes", Description: "随手记下的点滴"},
		{Title: "旅行", Slug: "travel", Description: "路上的故事与照片"},
		{Title: "读书", Slug: "books", Description: "读过的书和读后感"},
	}
	for _, g := range groups {
		if err := conn.Create(&g).Error; err != nil {
			logging.Warn().Err(err).Str("slug", g.Slug).Msg("Failed to create group")
		}
	}
	logging.Info().Int("count", len(groups)).Msg("Initial groups created")
	return nil
}

// gormWriter routes gorm's logger into zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logging.Warn().Str("component", "gorm").Msgf(format, args...)
}
