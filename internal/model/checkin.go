package model

import (
	"time"

	"CityClaim/internal/engine"
)

// CheckIn 一次通过地理围栏校验的到访。只追加，撤销时删除 (user, business) 最新的一条
type CheckIn struct {
	ID         int64   `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID     int64   `gorm:"not null;index:idx_check_ins_user_business_created,priority:1;index:idx_check_ins_user_created,priority:1" json:"user_id"`
	BusinessID int64   `gorm:"not null;index:idx_check_ins_user_business_created,priority:2" json:"business_id"`
	Latitude   float64 `gorm:"not null" json:"latitude"`
	Longitude  float64 `gorm:"not null" json:"longitude"`
	ZoneID     *int64  `json:"zone_id,omitempty"` // 创建时解析到的区域，仅供展示

	// 创建时的积分明细，PointsEarned 为总和
	PointsEarned      int `gorm:"not null;default:0" json:"points_earned"`
	BasePoints        int `gorm:"not null;default:0" json:"base_points"`
	FriendBonus       int `gorm:"not null;default:0" json:"friend_bonus"`
	PromotionBonus    int `gorm:"not null;default:0" json:"promotion_bonus"`
	StreakBonus       int `gorm:"not null;default:0" json:"streak_bonus"`
	ZoneCaptureBonus  int `gorm:"not null;default:0" json:"zone_capture_bonus"`
	NeighborhoodBonus int `gorm:"not null;default:0" json:"neighborhood_bonus"`
	QuestBonus        int `gorm:"not null;default:0" json:"quest_bonus"`

	CreatedAt time.Time `gorm:"not null;index:idx_check_ins_user_business_created,priority:3;index:idx_check_ins_user_created,priority:2" json:"created_at"`
}

// TableName 指定表名
func (CheckIn) TableName() string {
	return "check_ins"
}

// Breakdown 还原创建时的积分明细
func (c CheckIn) Breakdown() engine.Breakdown {
	return engine.Breakdown{
		Base:              c.BasePoints,
		FriendBonus:       c.FriendBonus,
		PromotionBonus:    c.PromotionBonus,
		StreakBonus:       c.StreakBonus,
		ZoneCaptureBonus:  c.ZoneCaptureBonus,
		NeighborhoodBonus: c.NeighborhoodBonus,
		QuestBonus:        c.QuestBonus,
		Total:             c.PointsEarned,
	}
}

// NewCheckIn 由引擎产出的记录构造持久化行
func NewCheckIn(r engine.CheckInRecord) CheckIn {
	return CheckIn{
		ID:                r.ID,
		UserID:            r.UserID,
		BusinessID:        r.BusinessID,
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
		ZoneID:            r.ZoneID,
		PointsEarned:      r.Points.Total,
		BasePoints:        r.Points.Base,
		FriendBonus:       r.Points.FriendBonus,
		PromotionBonus:    r.Points.PromotionBonus,
		StreakBonus:       r.Points.StreakBonus,
		ZoneCaptureBonus:  r.Points.ZoneCaptureBonus,
		NeighborhoodBonus: r.Points.NeighborhoodBonus,
		QuestBonus:        r.Points.QuestBonus,
		CreatedAt:         r.CreatedAt,
	}
}
