package engine

// VisitFacts 计算积分所需的全部事实
type VisitFacts struct {
	IsFirstVisit            bool
	FriendCount             int
	PromotionBonus          int
	NewZoneCaptured         bool
	NewNeighborhoodCaptured bool
	StreakDays              int // 本次打卡之后的连续天数
	QuestBonus              int
}

// Breakdown 分项积分，Total 为各项之和
type Breakdown struct {
	Base              int `json:"base"`
	FriendBonus       int `json:"friendBonus"`
	PromotionBonus    int `json:"promotionBonus"`
	StreakBonus       int `json:"streakBonus"`
	ZoneCaptureBonus  int `json:"zoneCaptureBonus"`
	NeighborhoodBonus int `json:"neighborhoodBonus"`
	QuestBonus        int `json:"questBonus"`
	Total             int `json:"total"`
}

// Calculate 纯函数：根据事实生成积分明细，任何一项都不会为负
func Calculate(rules Rules, f VisitFacts) Breakdown {
	var b Breakdown

	if f.IsFirstVisit {
		b.Base = nonNegative(rules.FirstVisitPoints)
	} else {
		b.Base = nonNegative(rules.RepeatVisitPoints)
	}

	b.FriendBonus = capped(nonNegative(f.FriendCount)*nonNegative(rules.FriendBonusPerFriend), rules.FriendBonusCap)
	b.PromotionBonus = nonNegative(f.PromotionBonus)

	if f.StreakDays > 1 {
		b.StreakBonus = capped((f.StreakDays-1)*nonNegative(rules.StreakBonusPerDay), rules.StreakBonusCap)
	}
	if f.NewZoneCaptured {
		b.ZoneCaptureBonus = nonNegative(rules.ZoneCaptureBonus)
	}
	if f.NewNeighborhoodCaptured {
		b.NeighborhoodBonus = nonNegative(rules.NeighborhoodBonus)
	}
	b.QuestBonus = nonNegative(f.QuestBonus)

	b.Total = b.Base + b.FriendBonus + b.PromotionBonus + b.StreakBonus +
		b.ZoneCaptureBonus + b.NeighborhoodBonus + b.QuestBonus
	return b
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// capped limit <= 0 表示不设上限
func capped(v, limit int) int {
	if limit > 0 && v > limit {
		return limit
	}
	return v
}
