package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_FirstVisitWithZoneCapture(t *testing.T) {
	rules := DefaultRules()
	b := Calculate(rules, VisitFacts{IsFirstVisit: true, NewZoneCaptured: true, StreakDays: 1})

	assert.Equal(t, rules.FirstVisitPoints, b.Base)
	assert.Equal(t, 25, b.ZoneCaptureBonus)
	assert.Zero(t, b.NeighborhoodBonus)
	assert.Zero(t, b.StreakBonus)
	assert.Equal(t, rules.FirstVisitPoints+25, b.Total)
}

func TestCalculate_AllBonuses(t *testing.T) {
	rules := DefaultRules()
	b := Calculate(rules, VisitFacts{
		IsFirstVisit:            false,
		FriendCount:             2,
		PromotionBonus:          15,
		NewZoneCaptured:         true,
		NewNeighborhoodCaptured: true,
		StreakDays:              4,
		QuestBonus:              30,
	})

	assert.Equal(t, rules.RepeatVisitPoints, b.Base)
	assert.Equal(t, 10, b.FriendBonus)
	assert.Equal(t, 15, b.PromotionBonus)
	assert.Equal(t, 6, b.StreakBonus)
	assert.Equal(t, 25, b.ZoneCaptureBonus)
	assert.Equal(t, 50, b.NeighborhoodBonus)
	assert.Equal(t, 30, b.QuestBonus)
	assert.Equal(t, b.Base+b.FriendBonus+b.PromotionBonus+b.StreakBonus+b.ZoneCaptureBonus+b.NeighborhoodBonus+b.QuestBonus, b.Total)
}

func TestCalculate_CapsAndNegatives(t *testing.T) {
	rules := DefaultRules()

	b := Calculate(rules, VisitFacts{FriendCount: 100, StreakDays: 365})
	assert.Equal(t, rules.FriendBonusCap, b.FriendBonus)
	assert.Equal(t, rules.StreakBonusCap, b.StreakBonus)

	b = Calculate(rules, VisitFacts{FriendCount: -3, PromotionBonus: -10, QuestBonus: -1})
	assert.Zero(t, b.FriendBonus)
	assert.Zero(t, b.PromotionBonus)
	assert.Zero(t, b.QuestBonus)
	assert.Equal(t, rules.RepeatVisitPoints, b.Total)
}

func TestNextStreak(t *testing.T) {
	assert.Equal(t, 4, NextStreak(3, true, true))
	assert.Equal(t, 4, NextStreak(3, true, false))
	assert.Equal(t, 1, NextStreak(3, false, true))
	assert.Equal(t, 3, NextStreak(3, false, false))
}

func TestReplayStreak(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	at := func(day, hour int) time.Time {
		return time.Date(2025, 3, day, hour, 0, 0, 0, loc)
	}

	streak, last := ReplayStreak(nil, loc)
	assert.Zero(t, streak)
	assert.Nil(t, last)

	// 1、2、3 号连续，5 号断开
	streak, last = ReplayStreak([]time.Time{at(2, 9), at(1, 9), at(3, 9)}, loc)
	assert.Equal(t, 3, streak)
	require.NotNil(t, last)
	assert.Equal(t, DayOf(at(3, 0), loc), *last)

	streak, _ = ReplayStreak([]time.Time{at(1, 9), at(2, 9), at(3, 9), at(5, 9)}, loc)
	assert.Equal(t, 1, streak)

	// 同一天第二次打卡，同时昨天有记录：按规则再 +1
	streak, _ = ReplayStreak([]time.Time{at(1, 9), at(2, 9), at(2, 18)}, loc)
	assert.Equal(t, 3, streak)
}

func TestReplayStreak_MatchesIncrementalPath(t *testing.T) {
	loc := time.UTC
	history := []time.Time{
		time.Date(2025, 1, 1, 8, 0, 0, 0, loc),
		time.Date(2025, 1, 1, 20, 0, 0, 0, loc),
		time.Date(2025, 1, 2, 8, 0, 0, 0, loc),
		time.Date(2025, 1, 4, 8, 0, 0, 0, loc),
		time.Date(2025, 1, 5, 8, 0, 0, 0, loc),
	}

	streak := 0
	for i, now := range history {
		yesterday, today, tomorrow := DayWindow(now, loc)
		hasYesterday, firstToday := false, true
		for _, prev := range history[:i] {
			if !prev.Before(yesterday) && prev.Before(today) {
				hasYesterday = true
			}
			if !prev.Before(today) && prev.Before(tomorrow) {
				firstToday = false
			}
		}
		streak = NextStreak(streak, hasYesterday, firstToday)
	}

	replayed, _ := ReplayStreak(history, loc)
	assert.Equal(t, streak, replayed)
}

func TestPlanCapture(t *testing.T) {
	now := time.Now()

	assert.False(t, PlanCapture(CaptureInput{Resolved: false}, now).NewZoneCaptured(), "unzoned business")
	assert.False(t, PlanCapture(CaptureInput{Resolved: true, ZoneID: 1, AlreadyCaptured: true}, now).NewZoneCaptured(), "idempotent")

	plan := PlanCapture(CaptureInput{Resolved: true, ZoneID: 1, ZoneName: "Bund"}, now)
	require.True(t, plan.NewZoneCaptured())
	assert.Nil(t, plan.Neighborhood)
	assert.Equal(t, int64(1), plan.Zone.ZoneID)

	plan = PlanCapture(CaptureInput{
		Resolved: true, ZoneID: 2, Neighborhood: "Huangpu",
		NeighborhoodCapturedOthers: 1, NeighborhoodTotal: 2,
	}, now)
	require.NotNil(t, plan.Neighborhood)
	assert.True(t, plan.NewNeighborhoodCaptured())
	assert.Equal(t, 2, plan.Neighborhood.After.ZonesCaptured)
	assert.True(t, plan.Neighborhood.After.FullyCaptured)

	plan = PlanCapture(CaptureInput{
		Resolved: true, ZoneID: 3, Neighborhood: "Xuhui",
		NeighborhoodCapturedOthers: 0, NeighborhoodTotal: 3,
	}, now)
	assert.False(t, plan.NewNeighborhoodCaptured())
	assert.False(t, plan.Neighborhood.After.FullyCaptured)
}

func TestFullyCaptured(t *testing.T) {
	assert.False(t, FullyCaptured(0, 0))
	assert.False(t, FullyCaptured(1, 2))
	assert.True(t, FullyCaptured(2, 2))
	assert.True(t, FullyCaptured(3, 2))
}

func TestPointsRemoved_RoundTrip(t *testing.T) {
	rules := DefaultRules()
	stored := Calculate(rules, VisitFacts{IsFirstVisit: true, NewZoneCaptured: true, StreakDays: 1})

	// 唯一商户被撤销：区域失去，扣除 base + 25
	assert.Equal(t, rules.FirstVisitPoints+25, PointsRemoved(rules, stored, true, false))

	// 同区域还有别的打卡：保留占领奖励
	assert.Equal(t, rules.FirstVisitPoints, PointsRemoved(rules, stored, false, false))

	// 本次打卡没有占领，但撤销后区域失去（另一条记录先被撤销过）
	plain := Calculate(rules, VisitFacts{IsFirstVisit: true, StreakDays: 1})
	assert.Equal(t, rules.FirstVisitPoints+25, PointsRemoved(rules, plain, true, false))
	assert.Equal(t, rules.FirstVisitPoints+25+50, PointsRemoved(rules, plain, true, true))
}

func TestDeduct_FlooredAtZero(t *testing.T) {
	assert.Equal(t, int64(5), Deduct(50, 45))
	assert.Equal(t, int64(0), Deduct(10, 45))
}

func TestRecountZone(t *testing.T) {
	r := RecountZone(4, true, []int64{1, 4})
	assert.False(t, r.Lost())
	r = RecountZone(4, true, []int64{1, 2})
	assert.True(t, r.Lost())
	r = RecountZone(4, false, nil)
	assert.False(t, r.Lost())
}
