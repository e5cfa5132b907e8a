package quest

import (
	"sort"
	"time"

	"CityClaim/internal/geo"
)

// Place 生成候选所需的商户信息
type Place struct {
	BusinessID     int64
	Name           string
	Category       string
	Location       geo.Point
	MinPercentOff  *int
	MaxPercentOff  *int
	OpensAtMinute  *int // 当地零点起的分钟数，nil 表示全天营业
	ClosesAtMinute *int
}

// Candidate 引擎自己算出来的确定性事实，上游生成的任务只能在这些事实的范围内
type Candidate struct {
	BusinessID     int64   `json:"business_id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	DistanceMeters float64 `json:"distance_meters"`
	MinPercentOff  *int    `json:"min_percent_off,omitempty"`
	MaxPercentOff  *int    `json:"max_percent_off,omitempty"`
	IsOpen         bool    `json:"is_open"`
}

// HasCouponBounds 地标类候选没有折扣区间
func (c Candidate) HasCouponBounds() bool {
	return c.MinPercentOff != nil && c.MaxPercentOff != nil
}

// BuildCandidates 取 origin 周围 radius 米内的商户，按距离升序，距离相同按商户 ID
func BuildCandidates(places []Place, origin geo.Point, now time.Time, radius float64, loc *time.Location) []Candidate {
	if loc == nil {
		loc = time.Local
	}

	out := make([]Candidate, 0, len(places))
	for _, p := range places {
		d := geo.Distance(origin, p.Location)
		if radius > 0 && d > radius {
			continue
		}

		c := Candidate{
			BusinessID:     p.BusinessID,
			Name:           p.Name,
			Category:       p.Category,
			DistanceMeters: float64(int64(d*10+0.5)) / 10,
			IsOpen:         isOpen(p.OpensAtMinute, p.ClosesAtMinute, now.In(loc)),
		}
		if p.MinPercentOff != nil && p.MaxPercentOff != nil {
			lo, hi := *p.MinPercentOff, *p.MaxPercentOff
			if lo > hi {
				lo, hi = hi, lo
			}
			c.MinPercentOff, c.MaxPercentOff = &lo, &hi
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].BusinessID < out[j].BusinessID
	})
	return out
}

// isOpen 支持跨零点营业（closes < opens）
func isOpen(opens, closes *int, local time.Time) bool {
	if opens == nil || closes == nil {
		return true
	}
	minute := local.Hour()*60 + local.Minute()
	o, c := *opens, *closes
	switch {
	case o == c:
		return true
	case o < c:
		return minute >= o && minute < c
	default:
		return minute >= o || minute < c
	}
}

// Index 按商户 ID 索引候选
func Index(candidates []Candidate) map[int64]Candidate {
	m := make(map[int64]Candidate, len(candidates))
	for _, c := range candidates {
		m[c.BusinessID] = c
	}
	return m
}
