package repository

import (
	"context"
	"fmt"
	"time"

	"CityClaim/internal/engine"
	"CityClaim/internal/model"
	"CityClaim/pkg/errors"
)

// ApplyCheckInEffects 在当前事务里一次性写入一次打卡的全部影响：
// 打卡行、任务兑换、区域 / 街区进度、用户积分与连续天数。
// 必须在 Transaction 内调用，任何一步失败都会整体回滚。
func (r *Repository) ApplyCheckInEffects(ctx context.Context, fx engine.CheckInEffects) error {
	row := model.NewCheckIn(fx.CheckIn)
	if err := r.CreateCheckIn(ctx, &row); err != nil {
		return fmt.Errorf("insert check-in: %w", err)
	}

	if fx.QuestClaim != nil {
		claimed, err := r.ClaimQuest(ctx, &model.QuestClaim{
			QuestID:   fx.QuestClaim.QuestID,
			UserID:    fx.UserID,
			CheckInID: fx.CheckIn.ID,
			Points:    fx.QuestClaim.Points,
			ClaimedAt: fx.Now,
		})
		if err != nil {
			return fmt.Errorf("claim quest: %w", err)
		}
		if !claimed {
			// 并发兑换：整个事务回滚后重试，重试时该任务已不可兑换
			return &errors.ConcurrencyConflictError{Op: "claim quest"}
		}
	}

	if z := fx.Capture.Zone; z != nil {
		at := z.CapturedAt
		if err := r.SetZoneCaptured(ctx, fx.UserID, z.ZoneID, true, &at); err != nil {
			return fmt.Errorf("capture zone: %w", err)
		}
	}

	if n := fx.Capture.Neighborhood; n != nil {
		capturedAt, err := r.neighborhoodCapturedAt(ctx, fx, n)
		if err != nil {
			return err
		}
		if err := r.SaveNeighborhood(ctx, fx.UserID, n.After, capturedAt); err != nil {
			return fmt.Errorf("save neighborhood: %w", err)
		}
	}

	last := fx.LastCheckInDate
	if err := r.AddPoints(ctx, fx.UserID, fx.PointsDelta, fx.StreakDays, &last); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// neighborhoodCapturedAt 刚变为完全占领时取 now，保持完全占领时沿用原时间
func (r *Repository) neighborhoodCapturedAt(ctx context.Context, fx engine.CheckInEffects, n *engine.NeighborhoodChange) (*time.Time, error) {
	if !n.After.FullyCaptured {
		return nil, nil
	}
	if n.Captured() {
		now := fx.Now
		return &now, nil
	}
	prev, err := r.GetNeighborhoodProgress(ctx, fx.UserID, n.After.Name)
	if err != nil {
		return nil, fmt.Errorf("load neighborhood: %w", err)
	}
	if prev != nil && prev.CapturedAt != nil {
		return prev.CapturedAt, nil
	}
	now := fx.Now
	return &now, nil
}
