package engine

// Rules 积分规则，由 config 构建后注入，引擎内部不读取全局配置
type Rules struct {
	FirstVisitPoints     int
	RepeatVisitPoints    int
	FriendBonusPerFriend int
	FriendBonusCap       int
	ZoneCaptureBonus     int
	NeighborhoodBonus    int
	StreakBonusPerDay    int
	StreakBonusCap       int
}

// DefaultRules 默认积分规则
func DefaultRules() Rules {
	return Rules{
		FirstVisitPoints:     20,
		RepeatVisitPoints:    10,
		FriendBonusPerFriend: 5,
		FriendBonusCap:       20,
		ZoneCaptureBonus:     25,
		NeighborhoodBonus:    50,
		StreakBonusPerDay:    2,
		StreakBonusCap:       20,
	}
}
