package repository

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"CityClaim/internal/engine"
	"CityClaim/internal/model"
)

// ListZones 当前全部区域，按 ID 升序（resolver 的固定遍历顺序）
func (r *Repository) ListZones(ctx context.Context) ([]model.Zone, error) {
	var zones []model.Zone
	if err := r.conn(ctx).Order("id ASC").Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}

// GetZoneProgress 不存在时返回 nil
func (r *Repository) GetZoneProgress(ctx context.Context, userID, zoneID int64) (*model.ZoneProgress, error) {
	var p model.ZoneProgress
	err := r.conn(ctx).Where("user_id = ? AND zone_id = ?", userID, zoneID).First(&p).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetZoneCaptured upsert (user, zone) 的占领状态
func (r *Repository) SetZoneCaptured(ctx context.Context, userID, zoneID int64, captured bool, at *time.Time) error {
	row := model.ZoneProgress{
		UserID:     userID,
		ZoneID:     zoneID,
		Captured:   captured,
		CapturedAt: at,
		UpdatedAt:  time.Now(),
	}
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "zone_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"captured", "captured_at", "updated_at"}),
	}).Create(&row).Error
}

// CountCapturedInNeighborhood 用户在该街区已占领的区域数，excludeZoneID 不计入（传 0 表示不排除）
func (r *Repository) CountCapturedInNeighborhood(ctx context.Context, userID int64, name string, excludeZoneID int64) (int, error) {
	var n int64
	q := r.conn(ctx).Model(&model.ZoneProgress{}).
		Joins("JOIN zones ON zones.id = zone_progress.zone_id").
		Where("zone_progress.user_id = ? AND zone_progress.captured = ?", userID, true).
		Where("zones.neighborhood = ?", name)
	if excludeZoneID != 0 {
		q = q.Where("zone_progress.zone_id <> ?", excludeZoneID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountZonesInNeighborhood 街区下的区域总数（实时查询）
func (r *Repository) CountZonesInNeighborhood(ctx context.Context, name string) (int, error) {
	var n int64
	if err := r.conn(ctx).Model(&model.Zone{}).Where("neighborhood = ?", name).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// GetNeighborhoodProgress 不存在时返回 nil
func (r *Repository) GetNeighborhoodProgress(ctx context.Context, userID int64, name string) (*model.NeighborhoodProgress, error) {
	var p model.NeighborhoodProgress
	err := r.conn(ctx).Where("user_id = ? AND name = ?", userID, name).First(&p).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveNeighborhood upsert 街区进度。capturedAt 只在变为完全占领时写入，失去时清空
func (r *Repository) SaveNeighborhood(ctx context.Context, userID int64, state engine.NeighborhoodState, capturedAt *time.Time) error {
	row := model.NeighborhoodProgress{
		UserID:        userID,
		Name:          state.Name,
		ZonesCaptured: state.ZonesCaptured,
		TotalZones:    state.TotalZones,
		FullyCaptured: state.FullyCaptured,
		CapturedAt:    capturedAt,
		UpdatedAt:     time.Now(),
	}
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"zones_captured", "total_zones", "fully_captured", "captured_at", "updated_at",
		}),
	}).Create(&row).Error
}

// CountCapturedZones 用户已占领的区域数
func (r *Repository) CountCapturedZones(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&model.ZoneProgress{}).
		Where("user_id = ? AND captured = ?", userID, true).
		Count(&n).Error
	return n, err
}

type neighborhoodCount struct {
	Name string
	N    int
}

// CountCapturedNeighborhoods 用户完全占领的街区数，按当前区域集合实时计算，不读存储的 fully_captured
func (r *Repository) CountCapturedNeighborhoods(ctx context.Context, userID int64) (int64, error) {
	var captured []neighborhoodCount
	err := r.conn(ctx).Model(&model.ZoneProgress{}).
		Select("zones.neighborhood AS name, COUNT(*) AS n").
		Joins("JOIN zones ON zones.id = zone_progress.zone_id").
		Where("zone_progress.user_id = ? AND zone_progress.captured = ?", userID, true).
		Where("zones.neighborhood <> ''").
		Group("zones.neighborhood").
		Scan(&captured).Error
	if err != nil || len(captured) == 0 {
		return 0, err
	}

	names := make([]string, len(captured))
	for i, c := range captured {
		names[i] = c.Name
	}
	var totals []neighborhoodCount
	err = r.conn(ctx).Model(&model.Zone{}).
		Select("neighborhood AS name, COUNT(*) AS n").
		Where("neighborhood IN ?", names).
		Group("neighborhood").
		Scan(&totals).Error
	if err != nil {
		return 0, err
	}

	total := make(map[string]int, len(totals))
	for _, t := range totals {
		total[t.Name] = t.N
	}
	var n int64
	for _, c := range captured {
		if engine.FullyCaptured(c.N, total[c.Name]) {
			n++
		}
	}
	return n, nil
}
