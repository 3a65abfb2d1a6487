package postgres

import (
	"fmt"
	"log"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the pool. The schema is owned by the SQL migrations, so no
// AutoMigrate runs here.
func InitDB(cfg *config.IBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.IBDB.Dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm.DB: %w", err)
	}
	if cfg.IBDB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.IBDB.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.IBDB.MaxOpenConns / 2)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func MustInitDB(cfg *config.IBConfig) *gorm.DB {
	db, err := InitDB(cfg)
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}
	return db
}
