package quest

import (
	"fmt"
	"strings"
	"time"

	"CityClaim/pkg/errors"
)

// 任务类型
const (
	TypeVisit   = "visit"
	TypeDeal    = "deal"
	TypePhoto   = "photo"
	TypeExplore = "explore"
)

// 来源
const (
	SourceAI       = "ai"
	SourceTemplate = "template"
)

const (
	maxTitleLen  = 80
	maxPromptLen = 500
)

var knownTypes = map[string]bool{
	TypeVisit:   true,
	TypeDeal:    true,
	TypePhoto:   true,
	TypeExplore: true,
}

// Suggestion 上游返回的原始任务，所有字段都不可信
type Suggestion struct {
	ID                  string    `json:"id"`
	BusinessID          FlexInt64 `json:"business_id"`
	Type                string    `json:"type"`
	Title               string    `json:"title"`
	Prompt              string    `json:"prompt"`
	SuggestedPoints     int       `json:"suggested_points"`
	SuggestedPercentOff *int      `json:"suggested_percent_off"`
	ExpiresInMinutes    int       `json:"expires_in_minutes"`
}

// Quest 通过校验、可以落库兑换的任务
type Quest struct {
	ID               int64
	BusinessID       int64
	Type             string
	Title            string
	Prompt           string
	Points           int
	PercentOff       *int
	ExpiresInMinutes int
	ExpiresAt        time.Time
	Source           string
}

// IDGenerator 为每个任务分配新 ID，不复用上游 ID
type IDGenerator func() int64

// Limits 校验参数
type Limits struct {
	Window    time.Duration // 请求的时间窗口
	MaxPoints int
}

// Validate 依次执行：
//
//	(a) business_id 不在候选集里 -> 拒绝
//	(b) 折扣夹到候选的 [min, max]；候选没有折扣区间则置空
//	(c) 过期时间不超过窗口，缺失或非正数取窗口
//	(d) 分配新 ID
//
// 另外把积分夹到 [0, MaxPoints]、裁剪标题文案、拒绝未知类型。
// 整批全部被拒绝时返回 *errors.QuestValidationError，调用方走模板兜底。
func Validate(batch []Suggestion, candidates []Candidate, limits Limits, nextID IDGenerator, now time.Time) ([]Quest, error) {
	index := Index(candidates)
	windowMinutes := int(limits.Window / time.Minute)
	if windowMinutes <= 0 {
		// 不足一分钟的窗口放不下任何任务，整批拒绝，不把过期时间抬到窗口之外
		return nil, &errors.QuestValidationError{
			Rejected: len(batch),
			Reasons:  []string{fmt.Sprintf("window %s shorter than one minute", limits.Window)},
		}
	}

	out := make([]Quest, 0, len(batch))
	var reasons []string
	for i, s := range batch {
		c, ok := index[int64(s.BusinessID)]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("#%d: unknown business %d", i, int64(s.BusinessID)))
			continue
		}

		typ := strings.ToLower(strings.TrimSpace(s.Type))
		if typ == "" {
			typ = TypeVisit
		}
		if !knownTypes[typ] {
			reasons = append(reasons, fmt.Sprintf("#%d: unknown type %q", i, s.Type))
			continue
		}

		title := truncate(strings.TrimSpace(s.Title), maxTitleLen)
		if title == "" {
			title = "Visit " + c.Name
		}

		expires := s.ExpiresInMinutes
		if expires <= 0 || expires > windowMinutes {
			expires = windowMinutes
		}

		q := Quest{
			ID:               nextID(),
			BusinessID:       c.BusinessID,
			Type:             typ,
			Title:            title,
			Prompt:           truncate(strings.TrimSpace(s.Prompt), maxPromptLen),
			Points:           clamp(s.SuggestedPoints, 0, limits.MaxPoints),
			PercentOff:       ClampPercentOff(s.SuggestedPercentOff, c),
			ExpiresInMinutes: expires,
			ExpiresAt:        now.Add(time.Duration(expires) * time.Minute),
			Source:           SourceAI,
		}
		if q.Type == TypeDeal && q.PercentOff == nil {
			q.Type = TypeVisit
		}
		out = append(out, q)
	}

	if len(out) == 0 {
		return nil, &errors.QuestValidationError{Rejected: len(batch), Reasons: reasons}
	}
	return out, nil
}

// ClampPercentOff 候选没有折扣区间时强制为 nil；有区间但上游没给时保持 nil
func ClampPercentOff(v *int, c Candidate) *int {
	if !c.HasCouponBounds() || v == nil {
		return nil
	}
	clamped := clamp(*v, *c.MinPercentOff, *c.MaxPercentOff)
	return &clamped
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
