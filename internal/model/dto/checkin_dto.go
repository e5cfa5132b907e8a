package dto

import (
	"time"

	"CityClaim/internal/engine"
)

// ========== CheckIn 相关 DTO ==========

// CreateCheckInRequest POST /v1/checkins
type CreateCheckInRequest struct {
	BusinessID int64   `json:"businessId" vd:"$>0"`
	Latitude   float64 `json:"latitude" vd:"$>=-90&&$<=90"`
	Longitude  float64 `json:"longitude" vd:"$>=-180&&$<=180"`
	FriendIDs  []int64 `json:"friendIds,omitempty"`
}

// ZoneCaptureData 本次新占领的区域
type ZoneCaptureData struct {
	ZoneID   int64  `json:"zoneId"`
	ZoneName string `json:"zoneName"`
}

// NeighborhoodCaptureData 本次新完全占领的街区
type NeighborhoodCaptureData struct {
	Name          string `json:"name"`
	ZonesCaptured int    `json:"zonesCaptured"`
	TotalZones    int    `json:"totalZones"`
}

// QuestRedemptionData 本次打卡兑换的任务
type QuestRedemptionData struct {
	QuestID    int64 `json:"questId,string"`
	Points     int   `json:"points"`
	PercentOff *int  `json:"percentOff,omitempty"`
}

// CheckInResponse 打卡成功响应
type CheckInResponse struct {
	ID                  int64                    `json:"id,string"`
	BusinessID          int64                    `json:"businessId"`
	Points              engine.Breakdown         `json:"points"`
	IsFirstVisit        bool                     `json:"isFirstVisit"`
	StreakDays          int                      `json:"streakDays"`
	ZoneCapture         *ZoneCaptureData         `json:"zoneCapture,omitempty"`
	NeighborhoodCapture *NeighborhoodCaptureData `json:"neighborhoodCapture,omitempty"`
	QuestRedemption     *QuestRedemptionData     `json:"questRedemption,omitempty"`
	CreatedAt           time.Time                `json:"createdAt"`
}

// UndoCheckInRequest POST /v1/checkins/undo
type UndoCheckInRequest struct {
	BusinessID int64 `json:"businessId" vd:"$>0"`
}

// UndoCheckInResponse 撤销结果
type UndoCheckInResponse struct {
	RemovedCheckInID           int64 `json:"removedCheckInId,string"`
	PointsRemoved              int   `json:"pointsRemoved"`
	ZoneCaptureRemoved         bool  `json:"zoneCaptureRemoved"`
	NeighborhoodCaptureRemoved bool  `json:"neighborhoodCaptureRemoved"`
}

// CheckInStats GET /v1/checkins/stats
type CheckInStats struct {
	TotalCheckIns         int64 `json:"totalCheckIns"`
	UniquePlaces          int64 `json:"uniquePlaces"`
	ZonesCaptured         int64 `json:"zonesCaptured"`
	NeighborhoodsCaptured int64 `json:"neighborhoodsCaptured"`
	Points                int64 `json:"points"`
	StreakDays            int   `json:"streakDays"`
}

// CheckInHistoryQuery 打卡历史查询参数
type CheckInHistoryQuery struct {
	Cursor string `query:"cursor"`
	Limit  int    `query:"limit"`
}

// CheckInItem 历史列表项
type CheckInItem struct {
	ID         int64            `json:"id,string"`
	BusinessID int64            `json:"businessId"`
	ZoneID     *int64           `json:"zoneId,omitempty"`
	Points     engine.Breakdown `json:"points"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// CheckInHistoryResponse 历史分页
type CheckInHistoryResponse struct {
	Items      []CheckInItem `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}
