package engine

import "time"

// FullyCaptured 街区是否被完全占领
func FullyCaptured(zonesCaptured, totalZones int) bool {
	return totalZones > 0 && zonesCaptured >= totalZones
}

// NeighborhoodState 某用户在某街区的占领进度
type NeighborhoodState struct {
	Name          string `json:"name"`
	ZonesCaptured int    `json:"zonesCaptured"`
	TotalZones    int    `json:"totalZones"`
	FullyCaptured bool   `json:"fullyCaptured"`
}

// NewNeighborhoodState 按统一公式计算 fullyCaptured
func NewNeighborhoodState(name string, zonesCaptured, totalZones int) NeighborhoodState {
	return NeighborhoodState{
		Name:          name,
		ZonesCaptured: zonesCaptured,
		TotalZones:    totalZones,
		FullyCaptured: FullyCaptured(zonesCaptured, totalZones),
	}
}

// NeighborhoodChange 一次重算前后的街区状态
type NeighborhoodChange struct {
	Before NeighborhoodState
	After  NeighborhoodState
}

// Captured fullyCaptured 从 false 变为 true
func (c NeighborhoodChange) Captured() bool {
	return !c.Before.FullyCaptured && c.After.FullyCaptured
}

// Lost fullyCaptured 从 true 变为 false
func (c NeighborhoodChange) Lost() bool {
	return c.Before.FullyCaptured && !c.After.FullyCaptured
}

// CaptureInput 打卡时捕获状态机的输入，全部来自同一事务内的读取
type CaptureInput struct {
	ZoneID          int64
	ZoneName        string
	Resolved        bool // 商户是否落在某个区域内
	AlreadyCaptured bool

	Neighborhood string
	// 该街区下用户已占领的区域数（不含本区域）
	NeighborhoodCapturedOthers int
	NeighborhoodTotal          int
	NeighborhoodWasFully       bool
}

// ZoneCapture 新占领的区域
type ZoneCapture struct {
	ZoneID     int64
	ZoneName   string
	CapturedAt time.Time
}

// CapturePlan 状态机的输出
type CapturePlan struct {
	Zone         *ZoneCapture
	Neighborhood *NeighborhoodChange
}

// NewZoneCaptured 本次打卡是否新占领了区域
func (p CapturePlan) NewZoneCaptured() bool {
	return p.Zone != nil
}

// NewNeighborhoodCaptured 本次打卡是否让街区变为完全占领
func (p CapturePlan) NewNeighborhoodCaptured() bool {
	return p.Neighborhood != nil && p.Neighborhood.Captured()
}

// PlanCapture 区域状态只会 Uncaptured -> Captured；已占领时什么都不做（幂等，不重复奖励）
func PlanCapture(in CaptureInput, now time.Time) CapturePlan {
	if !in.Resolved || in.AlreadyCaptured {
		return CapturePlan{}
	}

	plan := CapturePlan{
		Zone: &ZoneCapture{ZoneID: in.ZoneID, ZoneName: in.ZoneName, CapturedAt: now},
	}

	if in.Neighborhood != "" {
		plan.Neighborhood = &NeighborhoodChange{
			Before: NeighborhoodState{
				Name:          in.Neighborhood,
				ZonesCaptured: in.NeighborhoodCapturedOthers,
				TotalZones:    in.NeighborhoodTotal,
				FullyCaptured: in.NeighborhoodWasFully,
			},
			After: NewNeighborhoodState(in.Neighborhood, in.NeighborhoodCapturedOthers+1, in.NeighborhoodTotal),
		}
	}

	return plan
}
