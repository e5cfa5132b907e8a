package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"CityClaim/internal/model"
	"CityClaim/pkg/logger"
)

// Models 打卡引擎持有的全部表；商户、区域、活动表由管理方写入，这里迁移只为本地和测试环境
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Business{},
		&model.Promotion{},
		&model.Zone{},
		&model.ZoneProgress{},
		&model.NeighborhoodProgress{},
		&model.CheckIn{},
		&model.Quest{},
		&model.QuestClaim{},
	}
}

// Migrate 运行数据库迁移
func Migrate(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.L().Info("Starting database migration...")

	if err := db.AutoMigrate(Models()...); err != nil {
		logger.L().Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.L().Info("Database migration completed successfully")
	return nil
}
