package engine

import (
	"sort"
	"time"
)

// NextStreak 连续打卡规则：
//   - 昨天有打卡：+1
//   - 否则今天第一次打卡：重置为 1
//   - 否则保持不变
//
// 每次打卡都会执行一次，与打卡的商户、区域无关。
func NextStreak(current int, hasYesterday, firstToday bool) int {
	switch {
	case hasYesterday:
		return current + 1
	case firstToday:
		return 1
	default:
		return current
	}
}

// DayOf 返回 t 在 loc 时区下的当天零点
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayWindow 返回 [yesterdayStart, todayStart, tomorrowStart)
func DayWindow(now time.Time, loc *time.Location) (yesterday, today, tomorrow time.Time) {
	today = DayOf(now, loc)
	return today.AddDate(0, 0, -1), today, today.AddDate(0, 0, 1)
}

// ReplayStreak 在打卡历史上按时间顺序重放 NextStreak，撤销后用它重算连续天数。
// 返回最终的连续天数和最后一次打卡所在的日期（无历史时为 nil）。
func ReplayStreak(times []time.Time, loc *time.Location) (int, *time.Time) {
	if len(times) == 0 {
		return 0, nil
	}

	sorted := make([]time.Time, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	seen := make(map[time.Time]bool, len(sorted))
	streak := 0
	var last time.Time
	for _, t := range sorted {
		day := DayOf(t, loc)
		streak = NextStreak(streak, seen[day.AddDate(0, 0, -1)], !seen[day])
		seen[day] = true
		last = day
	}
	return streak, &last
}
