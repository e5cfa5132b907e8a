package repository

import (
	"context"
	"time"

	"CityClaim/internal/model"
	"CityClaim/pkg/errors"
)

// GetBusiness 查询商户，不存在时返回 TargetNotFoundError
func (r *Repository) GetBusiness(ctx context.Context, id int64) (*model.Business, error) {
	var b model.Business
	err := r.conn(ctx).Where("id = ?", id).First(&b).Error
	if notFound(err) {
		return nil, &errors.TargetNotFoundError{Kind: "business", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBusinessesInBox 经纬度矩形内的商户，精确距离由调用方再过滤
func (r *Repository) ListBusinessesInBox(ctx context.Context, minLat, minLng, maxLat, maxLng float64, limit int) ([]model.Business, error) {
	var list []model.Business
	q := r.conn(ctx).
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLng, maxLng).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListVisitedBusinesses 用户仍有打卡记录的商户
func (r *Repository) ListVisitedBusinesses(ctx context.Context, userID int64) ([]model.Business, error) {
	var list []model.Business
	err := r.conn(ctx).
		Where("id IN (?)", r.conn(ctx).Model(&model.CheckIn{}).Select("business_id").Where("user_id = ?", userID)).
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ActivePromotionBonus now 落在活动窗口内的最大加分，没有活动时为 0
func (r *Repository) ActivePromotionBonus(ctx context.Context, businessID int64, now time.Time) (int, error) {
	var bonus struct {
		Max *int
	}
	err := r.conn(ctx).Model(&model.Promotion{}).
		Select("MAX(bonus_points) AS max").
		Where("business_id = ? AND starts_at <= ? AND ends_at > ?", businessID, now, now).
		Scan(&bonus).Error
	if err != nil {
		return 0, err
	}
	if bonus.Max == nil {
		return 0, nil
	}
	return *bonus.Max, nil
}
