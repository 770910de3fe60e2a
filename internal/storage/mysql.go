package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/imulab-x/client-service/internal/config"
)

// InitMySQL 打开到 MySQL 的 GORM 连接（失败时按退避重试），并通过 AutoMigrate 确保表结构存在。
func InitMySQL(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	tries := cfg.MySQL.ConnectTries
	if tries == 0 {
		tries = 5
	}
	attempt := 0
	db, err := backoff.Retry(ctx, func() (*gorm.DB, error) {
		attempt++
		return openMySQL(ctx, cfg)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.WithError(err).WithFields(log.Fields{
				"dsn":     cfg.MySQL.DSNMasked(),
				"attempt": attempt,
				"retry":   d.String(),
			}).Warn("mysql not ready, retrying")
		}),
	)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		CloseMySQL(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func openMySQL(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN()), gcfg)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	// 验证底层连接可用
	sqlDB, err := db.DB()
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("sql db: %w", err))
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// CloseMySQL 关闭底层 sql.DB 连接。
func CloseMySQL(db *gorm.DB) {
	if db == nil {
		return
	}
	var s *sql.DB
	var err error
	s, err = db.DB()
	if err == nil && s != nil {
		_ = s.Close()
	}
}
