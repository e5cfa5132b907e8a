package model

import "time"

// User 玩家账户。ID 是鉴权方签发的用户 ID，首次打卡时懒创建
type User struct {
	ID              int64      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Points          int64      `gorm:"not null;default:0" json:"points"`
	StreakDays      int        `gorm:"not null;default:0" json:"streak_days"`
	LastCheckInDate *time.Time `gorm:"type:date" json:"last_check_in_date,omitempty"` // 连续打卡时区下的日期
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
