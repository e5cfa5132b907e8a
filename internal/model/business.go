package model

import (
	"time"

	"CityClaim/internal/geo"
)

// Business 商户 / 兴趣点，由商户管理方维护，这里只读
type Business struct {
	BaseModel
	Name      string  `gorm:"type:varchar(128);not null" json:"name"`
	Category  string  `gorm:"type:varchar(32);not null;default:''" json:"category"`
	Latitude  float64 `gorm:"not null" json:"latitude"`
	Longitude float64 `gorm:"not null" json:"longitude"`

	RadiusMeters *float64 `json:"radius_meters,omitempty"` // 覆盖默认打卡半径

	// 优惠区间，地标类没有
	MinPercentOff *int `json:"min_percent_off,omitempty"`
	MaxPercentOff *int `json:"max_percent_off,omitempty"`

	// 营业时间，当地零点起的分钟数
	OpensAtMinute  *int `json:"opens_at_minute,omitempty"`
	ClosesAtMinute *int `json:"closes_at_minute,omitempty"`
}

// TableName 指定表名
func (Business) TableName() string {
	return "businesses"
}

// Point 商户坐标
func (b Business) Point() geo.Point {
	return geo.Point{Lat: b.Latitude, Lng: b.Longitude}
}

// Promotion 商户的限时加分活动
type Promotion struct {
	BaseModel
	BusinessID  int64     `gorm:"not null;index:idx_promotions_business_window" json:"business_id"`
	BonusPoints int       `gorm:"not null;default:0" json:"bonus_points"`
	StartsAt    time.Time `gorm:"not null;index:idx_promotions_business_window" json:"starts_at"`
	EndsAt      time.Time `gorm:"not null;index:idx_promotions_business_window" json:"ends_at"`
}

// TableName 指定表名
func (Promotion) TableName() string {
	return "promotions"
}
