package engine

// PointsRemoved 撤销一次打卡应扣除的积分。
//
// stored 是该打卡创建时记录的明细。占领奖励只在占领本身真正失去时扣除：
// 同区域内还有别的商户打卡记录时，区域依然被占领，奖励保留。
func PointsRemoved(rules Rules, stored Breakdown, zoneLost, neighborhoodLost bool) int {
	removed := stored.Total - stored.ZoneCaptureBonus - stored.NeighborhoodBonus
	if zoneLost {
		removed += nonNegative(rules.ZoneCaptureBonus)
	}
	if neighborhoodLost {
		removed += nonNegative(rules.NeighborhoodBonus)
	}
	return nonNegative(removed)
}

// Deduct 扣减积分，最低为 0
func Deduct(balance int64, amount int) int64 {
	next := balance - int64(amount)
	if next < 0 {
		return 0
	}
	return next
}

// ZoneRecount 撤销后某区域的重算结果
type ZoneRecount struct {
	ZoneID        int64
	WasCaptured   bool
	StillCaptured bool
}

// Lost 区域从已占领变为未占领
func (z ZoneRecount) Lost() bool {
	return z.WasCaptured && !z.StillCaptured
}

// RecountZone 剩余打卡中只要还有任一商户落在该区域内，区域就仍被占领
func RecountZone(zoneID int64, wasCaptured bool, remainingZoneIDs []int64) ZoneRecount {
	still := false
	for _, id := range remainingZoneIDs {
		if id == zoneID {
			still = true
			break
		}
	}
	return ZoneRecount{ZoneID: zoneID, WasCaptured: wasCaptured, StillCaptured: still}
}
