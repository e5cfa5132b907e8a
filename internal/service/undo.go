package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"CityClaim/internal/engine"
	"CityClaim/internal/model"
	"CityClaim/internal/model/dto"
	"CityClaim/internal/queue"
	"CityClaim/internal/repository"
	"CityClaim/pkg/errors"
	"CityClaim/pkg/logger"
	"CityClaim/pkg/metrics"
)

type undoOutcome struct {
	removed          *model.CheckIn
	pointsRemoved    int
	zoneLost         bool
	neighborhoodLost bool
	now              time.Time
}

// Undo 撤销用户在该商户最新的一次打卡，并把积分、占领状态、连续天数恢复成
// “这次打卡从未发生过”的样子
func (s *CheckInService) Undo(ctx context.Context, userID int64, req dto.UndoCheckInRequest) (*dto.UndoCheckInResponse, error) {
	var out *undoOutcome
	err := runExclusive(ctx, s.locker, userID, "undo check-in", func() error {
		var err error
		out, err = s.undoTx(ctx, userID, req.BusinessID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("Check-in undone",
		zap.Int64("user_id", userID),
		zap.Int64("business_id", req.BusinessID),
		zap.Int64("check_in_id", out.removed.ID),
		zap.Int("points_removed", out.pointsRemoved),
		zap.Bool("zone_lost", out.zoneLost),
		zap.Bool("neighborhood_lost", out.neighborhoodLost),
	)
	metrics.RecordUndo(ctx, out.zoneLost, out.neighborhoodLost)

	s.afterCommit(ctx, userID)
	if s.events != nil {
		err := s.events.PublishCheckInUndone(ctx, queue.CheckInUndoneMessage{
			MessageID:     uuid.NewString(),
			CheckInID:     out.removed.ID,
			UserID:        userID,
			BusinessID:    req.BusinessID,
			PointsRemoved: out.pointsRemoved,
			OccurredAt:    out.now,
		})
		if err != nil {
			logger.Ctx(ctx).Warn("Failed to publish event",
				zap.String("event", queue.RoutingCheckInUndone),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
	}

	return &dto.UndoCheckInResponse{
		RemovedCheckInID:           out.removed.ID,
		PointsRemoved:              out.pointsRemoved,
		ZoneCaptureRemoved:         out.zoneLost,
		NeighborhoodCaptureRemoved: out.neighborhoodLost,
	}, nil
}

func (s *CheckInService) undoTx(ctx context.Context, userID, businessID int64) (*undoOutcome, error) {
	var out *undoOutcome

	err := s.repo.Transaction(ctx, "undo check-in", func(tx *repository.Repository) error {
		now := s.now()

		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		last, err := tx.LastCheckIn(ctx, userID, businessID)
		if err != nil {
			return err
		}
		if last == nil {
			return &errors.NoCheckInToUndoError{BusinessID: businessID}
		}

		zones, err := tx.ListZones(ctx)
		if err != nil {
			return err
		}
		affected, err := s.affectedZones(ctx, tx, userID, businessID, last, zones)
		if err != nil {
			return err
		}

		// 删除前记录受影响街区是否完全占领
		wasFully := make(map[string]bool)
		for _, z := range affected {
			if z.zone.Neighborhood == "" {
				continue
			}
			if _, ok := wasFully[z.zone.Neighborhood]; ok {
				continue
			}
			state, err := liveNeighborhood(ctx, tx, userID, z.zone.Neighborhood)
			if err != nil {
				return err
			}
			wasFully[z.zone.Neighborhood] = state.FullyCaptured
		}

		if _, err := tx.DeleteCheckIn(ctx, last.ID); err != nil {
			return err
		}
		if _, err := tx.DeleteQuestClaimByCheckIn(ctx, last.ID); err != nil {
			return err
		}

		remaining, err := remainingZoneIDs(ctx, tx, userID, zones)
		if err != nil {
			return err
		}

		zoneLost := false
		lostNeighborhoods := make(map[string]struct{})
		for _, z := range affected {
			recount := engine.RecountZone(z.zone.ID, z.captured, remaining)
			if !recount.Lost() {
				continue
			}
			zoneLost = true
			if err := tx.SetZoneCaptured(ctx, userID, z.zone.ID, false, nil); err != nil {
				return err
			}
			if z.zone.Neighborhood != "" {
				lostNeighborhoods[z.zone.Neighborhood] = struct{}{}
			}
		}

		neighborhoodLost := false
		for name := range lostNeighborhoods {
			after, err := liveNeighborhood(ctx, tx, userID, name)
			if err != nil {
				return err
			}
			change := engine.NeighborhoodChange{
				Before: engine.NeighborhoodState{Name: name, FullyCaptured: wasFully[name]},
				After:  after,
			}
			if change.Lost() {
				neighborhoodLost = true
			}
			capturedAt, err := keepCapturedAt(ctx, tx, userID, after)
			if err != nil {
				return err
			}
			if err := tx.SaveNeighborhood(ctx, userID, after, capturedAt); err != nil {
				return err
			}
		}

		removed := engine.PointsRemoved(s.rules, last.Breakdown(), zoneLost, neighborhoodLost)

		times, err := tx.CheckInTimes(ctx, userID)
		if err != nil {
			return err
		}
		streak, lastDate := engine.ReplayStreak(times, s.loc)

		if err := tx.SetUserState(ctx, userID, engine.Deduct(user.Points, removed), streak, lastDate); err != nil {
			return err
		}

		out = &undoOutcome{
			removed:          last,
			pointsRemoved:    removed,
			zoneLost:         zoneLost,
			neighborhoodLost: neighborhoodLost,
			now:              now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type affectedZone struct {
	zone     model.Zone
	captured bool
}

// affectedZones 商户当前所在区域，以及打卡时记录的区域（区域边界可能已变化）
func (s *CheckInService) affectedZones(ctx context.Context, tx *repository.Repository, userID, businessID int64, last *model.CheckIn, zones []model.Zone) ([]affectedZone, error) {
	ids := make([]int64, 0, 2)

	biz, err := tx.GetBusiness(ctx, businessID)
	if err == nil {
		if z, ok := resolveZone(zones, biz.Point()); ok {
			ids = append(ids, z.ID)
		}
	} else if !isTargetNotFound(err) {
		return nil, err
	}
	if last.ZoneID != nil && (len(ids) == 0 || ids[0] != *last.ZoneID) {
		ids = append(ids, *last.ZoneID)
	}

	byID := make(map[int64]model.Zone, len(zones))
	for _, z := range zones {
		byID[z.ID] = z
	}

	var out []affectedZone
	for _, id := range ids {
		zone, ok := byID[id]
		if !ok {
			continue
		}
		progress, err := tx.GetZoneProgress(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, affectedZone{zone: zone, captured: progress != nil && progress.Captured})
	}
	return out, nil
}

// remainingZoneIDs 剩余打卡记录所在商户解析出的区域
func remainingZoneIDs(ctx context.Context, tx *repository.Repository, userID int64, zones []model.Zone) ([]int64, error) {
	visited, err := tx.ListVisitedBusinesses(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(visited))
	for _, b := range visited {
		if z, ok := resolveZone(zones, b.Point()); ok {
			ids = append(ids, z.ID)
		}
	}
	return ids, nil
}

// liveNeighborhood 根据当前区域进度实时计算街区状态
func liveNeighborhood(ctx context.Context, tx *repository.Repository, userID int64, name string) (engine.NeighborhoodState, error) {
	captured, err := tx.CountCapturedInNeighborhood(ctx, userID, name, 0)
	if err != nil {
		return engine.NeighborhoodState{}, err
	}
	total, err := tx.CountZonesInNeighborhood(ctx, name)
	if err != nil {
		return engine.NeighborhoodState{}, err
	}
	return engine.NewNeighborhoodState(name, captured, total), nil
}

// keepCapturedAt 仍完全占领时沿用原时间，否则清空
func keepCapturedAt(ctx context.Context, tx *repository.Repository, userID int64, state engine.NeighborhoodState) (*time.Time, error) {
	if !state.FullyCaptured {
		return nil, nil
	}
	prev, err := tx.GetNeighborhoodProgress(ctx, userID, state.Name)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, nil
	}
	return prev.CapturedAt, nil
}
