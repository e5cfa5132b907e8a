package model

import "time"

// Quest 通过校验、可兑换的任务
type Quest struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID     int64     `gorm:"not null;index:idx_quests_user_business,priority:1" json:"user_id"`
	BusinessID int64     `gorm:"not null;index:idx_quests_user_business,priority:2" json:"business_id"`
	Type       string    `gorm:"type:varchar(16);not null" json:"type"`
	Title      string    `gorm:"type:varchar(128);not null" json:"title"`
	Prompt     string    `gorm:"type:text;not null;default:''" json:"prompt"`
	Points     int       `gorm:"not null;default:0" json:"points"`
	PercentOff *int      `json:"percent_off,omitempty"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
	Source     string    `gorm:"type:varchar(16);not null" json:"source"` // ai / template
	BatchID    string    `gorm:"type:varchar(64);not null;index" json:"batch_id"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

// TableName 指定表名
func (Quest) TableName() string {
	return "quests"
}

// QuestClaim 任务兑换台账，quest_id 唯一，同一个任务只能兑换一次
type QuestClaim struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	QuestID   int64     `gorm:"not null;uniqueIndex" json:"quest_id,string"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	CheckInID int64     `gorm:"not null;index" json:"check_in_id,string"`
	Points    int       `gorm:"not null;default:0" json:"points"`
	ClaimedAt time.Time `gorm:"not null" json:"claimed_at"`
}

// TableName 指定表名
func (QuestClaim) TableName() string {
	return "quest_claims"
}
