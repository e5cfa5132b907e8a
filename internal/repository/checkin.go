package repository

import (
	"context"
	"time"

	"CityClaim/internal/model"
)

// LastCheckIn (user, business) 最新的一条打卡，没有时返回 nil
func (r *Repository) LastCheckIn(ctx context.Context, userID, businessID int64) (*model.CheckIn, error) {
	var c model.CheckIn
	err := r.conn(ctx).
		Where("user_id = ? AND business_id = ?", userID, businessID).
		Order("created_at DESC, id DESC").
		First(&c).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountCheckInsBetween 用户在 [from, to) 内的打卡数
func (r *Repository) CountCheckInsBetween(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&model.CheckIn{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from.UTC(), to.UTC()).
		Count(&n).Error
	return n, err
}

// CheckInTimes 用户全部打卡时间，升序
func (r *Repository) CheckInTimes(ctx context.Context, userID int64) ([]time.Time, error) {
	var times []time.Time
	err := r.conn(ctx).Model(&model.CheckIn{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("created_at", &times).Error
	return times, err
}

// CreateCheckIn 插入打卡行
func (r *Repository) CreateCheckIn(ctx context.Context, c *model.CheckIn) error {
	return r.conn(ctx).Create(c).Error
}

// DeleteCheckIn 删除一条打卡，返回是否删除成功
func (r *Repository) DeleteCheckIn(ctx context.Context, id int64) (bool, error) {
	res := r.conn(ctx).Where("id = ?", id).Delete(&model.CheckIn{})
	return res.RowsAffected > 0, res.Error
}

// ListCheckIns 按时间倒序分页，beforeID 为 0 表示从最新开始
func (r *Repository) ListCheckIns(ctx context.Context, userID int64, beforeID int64, limit int) ([]model.CheckIn, error) {
	var list []model.CheckIn
	q := r.conn(ctx).Where("user_id = ?", userID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	if err := q.Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// CountCheckIns 用户打卡总数
func (r *Repository) CountCheckIns(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&model.CheckIn{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// CountUniquePlaces 用户去过的不同商户数
func (r *Repository) CountUniquePlaces(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&model.CheckIn{}).
		Where("user_id = ?", userID).
		Distinct("business_id").
		Count(&n).Error
	return n, err
}
