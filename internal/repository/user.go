package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"CityClaim/internal/model"
)

// LockUser 读取并行锁用户行（SELECT ... FOR UPDATE），不存在时先懒创建
func (r *Repository) LockUser(ctx context.Context, userID int64) (*model.User, error) {
	db := r.conn(ctx)

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.User{ID: userID}).Error; err != nil {
		return nil, err
	}

	var user model.User
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser 读取用户，不存在时返回零值用户
func (r *Repository) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	err := r.conn(ctx).Where("id = ?", userID).First(&user).Error
	if notFound(err) {
		return &model.User{ID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AddPoints 增加积分并写入连续打卡状态
func (r *Repository) AddPoints(ctx context.Context, userID int64, delta int64, streakDays int, lastDate *time.Time) error {
	return r.conn(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"points":             gorm.Expr("points + ?", delta),
			"streak_days":        streakDays,
			"last_check_in_date": lastDate,
			"updated_at":         time.Now(),
		}).Error
}

// SetUserState 撤销后写入重算的积分和连续打卡状态
func (r *Repository) SetUserState(ctx context.Context, userID int64, points int64, streakDays int, lastDate *time.Time) error {
	return r.conn(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"points":             points,
			"streak_days":        streakDays,
			"last_check_in_date": lastDate,
			"updated_at":         time.Now(),
		}).Error
}
