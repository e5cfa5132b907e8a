package queue

import "time"

// 交换机与路由键
const (
	EventsExchange = "cityclaim.events"

	RoutingCheckInCreated        = "checkin.created"
	RoutingCheckInUndone         = "checkin.undone"
	RoutingZoneCaptured          = "zone.captured"
	RoutingNeighborhoodCaptured  = "neighborhood.captured"
	RoutingQuestGenerate         = "quest.generate"
	QuestGenerateQueue           = "cityclaim.quest.generate"
	QuestGenerateDeadLetterQueue = "cityclaim.quest.generate.dlq"
)

// CheckInCreatedMessage 打卡成功事件（供动态流等协作方消费）
type CheckInCreatedMessage struct {
	MessageID    string    `json:"message_id"`
	CheckInID    int64     `json:"check_in_id,string"`
	UserID       int64     `json:"user_id"`
	BusinessID   int64     `json:"business_id"`
	ZoneID       *int64    `json:"zone_id,omitempty"`
	PointsEarned int       `json:"points_earned"`
	StreakDays   int       `json:"streak_days"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// CheckInUndoneMessage 撤销事件
type CheckInUndoneMessage struct {
	MessageID     string    `json:"message_id"`
	CheckInID     int64     `json:"check_in_id,string"`
	UserID        int64     `json:"user_id"`
	BusinessID    int64     `json:"business_id"`
	PointsRemoved int       `json:"points_removed"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ZoneCapturedMessage 新占领区域
type ZoneCapturedMessage struct {
	MessageID  string    `json:"message_id"`
	UserID     int64     `json:"user_id"`
	ZoneID     int64     `json:"zone_id"`
	ZoneName   string    `json:"zone_name"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NeighborhoodCapturedMessage 街区完全占领
type NeighborhoodCapturedMessage struct {
	MessageID     string    `json:"message_id"`
	UserID        int64     `json:"user_id"`
	Name          string    `json:"name"`
	ZonesCaptured int       `json:"zones_captured"`
	TotalZones    int       `json:"total_zones"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// QuestGenerateMessage 异步生成任务请求，由 worker 消费
type QuestGenerateMessage struct {
	MessageID     string    `json:"message_id"`
	UserID        int64     `json:"user_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	WindowMinutes int       `json:"window_minutes"`
	RequestedAt   time.Time `json:"requested_at"`
}
