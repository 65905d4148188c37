package db

import (
	"fmt"
	"time"

	"hlsladder/config"
	"hlsladder/logger"
	"hlsladder/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectGormDB opens the catalog database and migrates the manifest table.
func ConnectGormDB(cfg *config.Config) (*gorm.DB, error) {
	gormDB, err := gorm.Open(mysql.Open(BuildDSN(cfg)), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := gormDB.AutoMigrate(&model.TrackManifest{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate catalog: %w", err)
	}

	logger.Info("connected to catalog database",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return gormDB, nil
}

// CloseGormDB closes the connection pool behind gormDB.
func CloseGormDB(gormDB *gorm.DB) error {
	if gormDB == nil {
		return nil
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
