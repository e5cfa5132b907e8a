package quest

import (
	"fmt"
	"sort"
	"time"
)

// 模板任务的固定积分
const (
	templateVisitPoints = 15
	templateDealPoints  = 20
)

// Fallback 用候选集生成确定性的模板任务。营业中的优先，其次按距离、商户 ID。
// 同样的输入总是得到同样的标题、类型和积分，只有 ID 是新分配的。
func Fallback(candidates []Candidate, n int, window time.Duration, nextID IDGenerator, now time.Time) []Quest {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.IsOpen != b.IsOpen {
			return a.IsOpen
		}
		if a.DistanceMeters != b.DistanceMeters {
			return a.DistanceMeters < b.DistanceMeters
		}
		return a.BusinessID < b.BusinessID
	})
	if len(ordered) > n {
		ordered = ordered[:n]
	}

	minutes := int(window / time.Minute)
	if minutes <= 0 {
		return nil
	}

	out := make([]Quest, 0, len(ordered))
	for _, c := range ordered {
		q := Quest{
			ID:               nextID(),
			BusinessID:       c.BusinessID,
			Type:             TypeVisit,
			Title:            truncate("Check in at "+c.Name, maxTitleLen),
			Prompt:           fmt.Sprintf("Head to %s (%.0fm away) and check in.", c.Name, c.DistanceMeters),
			Points:           templateVisitPoints,
			ExpiresInMinutes: minutes,
			ExpiresAt:        now.Add(time.Duration(minutes) * time.Minute),
			Source:           SourceTemplate,
		}
		if c.HasCouponBounds() {
			off := *c.MinPercentOff
			q.Type = TypeDeal
			q.Title = truncate(fmt.Sprintf("%d%% off at %s", off, c.Name), maxTitleLen)
			q.Prompt = fmt.Sprintf("Check in at %s to unlock %d%% off.", c.Name, off)
			q.Points = templateDealPoints
			q.PercentOff = &off
		}
		out = append(out, q)
	}
	return out
}
