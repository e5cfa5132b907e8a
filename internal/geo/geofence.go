package geo

import (
	"math"
	"time"

	"CityClaim/pkg/errors"
)

const (
	DefaultRadiusMeters = 50.0
	DefaultCooldown     = 24 * time.Hour

	// 浮点误差容忍，保证恰好等于半径的点可以通过
	distanceEpsilon = 1e-6
)

// FenceRules 地理围栏参数
type FenceRules struct {
	RadiusMeters float64
	Cooldown     time.Duration
}

// DefaultFenceRules 返回默认的 50m / 24h 规则
func DefaultFenceRules() FenceRules {
	return FenceRules{RadiusMeters: DefaultRadiusMeters, Cooldown: DefaultCooldown}
}

// WithRadius 商户单独配置了半径时覆盖默认值
func (r FenceRules) WithRadius(radius *float64) FenceRules {
	if radius != nil && *radius > 0 {
		r.RadiusMeters = *radius
	}
	return r
}

// CheckDistance 判断声明位置是否在目标半径内，恰好等于半径视为通过
func CheckDistance(claimed, target Point, radius float64) (float64, error) {
	d := Distance(claimed, target)
	if d > radius+distanceEpsilon {
		return d, &errors.TooFarError{
			DistanceMeters: math.Round(d*10) / 10,
			MaxDistance:    radius,
		}
	}
	return d, nil
}

// CheckCooldown lastCheckInAt 为同一 (user, business) 最近一次打卡时间，nil 表示从未打卡
func CheckCooldown(lastCheckInAt *time.Time, now time.Time, cooldown time.Duration) error {
	if lastCheckInAt == nil || cooldown <= 0 {
		return nil
	}
	next := lastCheckInAt.Add(cooldown)
	if now.Before(next) {
		return &errors.CooldownActiveError{NextAvailableAt: next}
	}
	return nil
}

// ValidateFence 先校验距离再校验冷却，两者互相独立
func ValidateFence(claimed, target Point, rules FenceRules, lastCheckInAt *time.Time, now time.Time) (float64, error) {
	d, err := CheckDistance(claimed, target, rules.RadiusMeters)
	if err != nil {
		return d, err
	}
	return d, CheckCooldown(lastCheckInAt, now, rules.Cooldown)
}
