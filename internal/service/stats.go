package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"CityClaim/internal/model/dto"
	"CityClaim/pkg/errors"
	"CityClaim/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Stats 用户打卡统计，优先读缓存；缓存在每次打卡、撤销后失效
func (s *CheckInService) Stats(ctx context.Context, userID int64) (*dto.CheckInStats, error) {
	if s.stats != nil {
		var cached dto.CheckInStats
		hit, err := s.stats.Get(ctx, userID, &cached)
		if err != nil {
			logger.L().Warn("Failed to read stats cache", zap.Int64("user_id", userID), zap.Error(err))
		}
		if hit {
			return &cached, nil
		}
	}

	var stats dto.CheckInStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.repo.CountCheckIns(gctx, userID)
		stats.TotalCheckIns = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountUniquePlaces(gctx, userID)
		stats.UniquePlaces = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountCapturedZones(gctx, userID)
		stats.ZonesCaptured = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountCapturedNeighborhoods(gctx, userID)
		stats.NeighborhoodsCaptured = n
		return err
	})
	g.Go(func() error {
		user, err := s.repo.GetUser(gctx, userID)
		if err != nil {
			return err
		}
		stats.Points = user.Points
		stats.StreakDays = user.StreakDays
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.stats != nil {
		if err := s.stats.Set(ctx, userID, &stats); err != nil {
			logger.L().Warn("Failed to write stats cache", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return &stats, nil
}

// History 按 ID 倒序分页，cursor 为上一页最后一条的 ID
func (s *CheckInService) History(ctx context.Context, userID int64, q dto.CheckInHistoryQuery) (*dto.CheckInHistoryResponse, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var before int64
	if q.Cursor != "" {
		v, err := strconv.ParseInt(q.Cursor, 10, 64)
		if err != nil || v <= 0 {
			return nil, errors.InvalidRequest
		}
		before = v
	}

	rows, err := s.repo.ListCheckIns(ctx, userID, before, limit+1)
	if err != nil {
		return nil, err
	}

	resp := &dto.CheckInHistoryResponse{Items: make([]dto.CheckInItem, 0, len(rows))}
	if len(rows) > limit {
		rows = rows[:limit]
		resp.NextCursor = strconv.FormatInt(rows[len(rows)-1].ID, 10)
	}
	for _, c := range rows {
		resp.Items = append(resp.Items, dto.CheckInItem{
			ID:         c.ID,
			BusinessID: c.BusinessID,
			ZoneID:     c.ZoneID,
			Points:     c.Breakdown(),
			CreatedAt:  c.CreatedAt,
		})
	}
	return resp, nil
}
