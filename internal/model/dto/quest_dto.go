package dto

import "time"

// ========== Quest 相关 DTO ==========

// GenerateQuestsRequest POST /v1/quests/generate
type GenerateQuestsRequest struct {
	Latitude      float64 `json:"latitude" vd:"$>=-90&&$<=90"`
	Longitude     float64 `json:"longitude" vd:"$>=-180&&$<=180"`
	WindowMinutes int     `json:"windowMinutes,omitempty"`
}

// QuestItem 可兑换的任务
type QuestItem struct {
	ID         int64     `json:"id,string"`
	BusinessID int64     `json:"businessId"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Prompt     string    `json:"prompt"`
	Points     int       `json:"points"`
	PercentOff *int      `json:"percentOff,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Source     string    `json:"source"`
}

// GenerateQuestsResponse 一批任务
type GenerateQuestsResponse struct {
	BatchID string      `json:"batchId"`
	Source  string      `json:"source"`
	Quests  []QuestItem `json:"quests"`
}

// QuestListResponse GET /v1/quests
type QuestListResponse struct {
	Quests []QuestItem `json:"quests"`
}
