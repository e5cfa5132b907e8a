package model

import (
	"time"

	"gorm.io/datatypes"

	"CityClaim/internal/geo"
)

// Zone 可占领的多边形区域，边界为闭合的 [lng, lat] 环
type Zone struct {
	BaseModel
	Name         string                          `gorm:"type:varchar(128);not null" json:"name"`
	Neighborhood string                          `gorm:"type:varchar(128);not null;default:'';index" json:"neighborhood,omitempty"`
	Boundary     datatypes.JSONSlice[geo.LngLat] `json:"boundary"`
}

// TableName 指定表名
func (Zone) TableName() string {
	return "zones"
}

// Shape 转成 resolver 使用的形状
func (z Zone) Shape() geo.ZoneShape {
	return geo.ZoneShape{ID: z.ID, Ring: geo.Ring(z.Boundary)}
}

// ZoneProgress (user, zone) 的占领状态。
// captured == true 当且仅当用户在该区域内仍有打卡记录。
type ZoneProgress struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID     int64      `gorm:"not null;uniqueIndex:idx_zone_progress_user_zone" json:"user_id"`
	ZoneID     int64      `gorm:"not null;uniqueIndex:idx_zone_progress_user_zone" json:"zone_id"`
	Captured   bool       `gorm:"not null;default:false" json:"captured"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (ZoneProgress) TableName() string {
	return "zone_progress"
}

// NeighborhoodProgress (user, neighborhood) 的聚合进度
type NeighborhoodProgress struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID        int64      `gorm:"not null;uniqueIndex:idx_neighborhood_progress_user_name" json:"user_id"`
	Name          string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_neighborhood_progress_user_name" json:"name"`
	ZonesCaptured int        `gorm:"not null;default:0" json:"zones_captured"`
	TotalZones    int        `gorm:"not null;default:0" json:"total_zones"`
	FullyCaptured bool       `gorm:"not null;default:false" json:"fully_captured"`
	CapturedAt    *time.Time `json:"captured_at,omitempty"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (NeighborhoodProgress) TableName() string {
	return "neighborhood_progress"
}
