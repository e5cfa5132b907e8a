package engine

import "time"

// CheckInRecord 待写入的打卡行
type CheckInRecord struct {
	ID         int64
	UserID     int64
	BusinessID int64
	Latitude   float64
	Longitude  float64
	ZoneID     *int64
	Points     Breakdown
	CreatedAt  time.Time
}

// QuestClaimRecord 待写入的任务领取记录
type QuestClaimRecord struct {
	QuestID    int64
	Points     int
	PercentOff *int
}

// CheckInEffects 一次打卡对存储产生的全部影响，只读、只应用一次
type CheckInEffects struct {
	UserID          int64
	Now             time.Time
	CheckIn         CheckInRecord
	PointsDelta     int64
	StreakDays      int
	LastCheckInDate time.Time
	Capture         CapturePlan
	QuestClaim      *QuestClaimRecord
}
