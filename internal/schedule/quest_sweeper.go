package schedule

// 任务清理：定期删除过期且未兑换的任务，已兑换的留作台账

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"CityClaim/internal/repository"
	"CityClaim/pkg/logger"
	"CityClaim/storage/database"
)

const (
	defaultSweepBatch     = 500
	defaultSweepRetention = 24 * time.Hour
)

// QuestStore 清理需要的仓储能力
type QuestStore interface {
	DeleteExpiredQuests(ctx context.Context, before time.Time, limit int) (int64, error)
}

var (
	sweeperOnce sync.Once
	sweeperInst *QuestSweeper
)

type QuestSweeper struct {
	store     QuestStore
	logger    *zap.Logger
	now       func() time.Time
	batchSize int
	// 过期超过 retention 才删，给客户端展示"已过期"留出时间
	retention time.Duration

	mu        sync.Mutex
	running   bool
	lastRun   time.Time
	lastSwept int64
}

func NewQuestSweeper(store QuestStore, batchSize int, retention time.Duration) *QuestSweeper {
	if batchSize <= 0 {
		batchSize = defaultSweepBatch
	}
	if retention < 0 {
		retention = defaultSweepRetention
	}
	return &QuestSweeper{
		store:     store,
		logger:    logger.L(),
		now:       func() time.Time { return time.Now().UTC() },
		batchSize: batchSize,
		retention: retention,
	}
}

// Sweeper 默认实例，使用全局数据库连接
func Sweeper() *QuestSweeper {
	sweeperOnce.Do(func() {
		sweeperInst = NewQuestSweeper(repository.New(database.DB()), defaultSweepBatch, defaultSweepRetention)
	})
	return sweeperInst
}

// SweepExpiredQuests 分批删除，直到某一批不满为止。同一时刻只跑一个
func (s *QuestSweeper) SweepExpiredQuests(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Quest sweep already running, skipping")
		return 0, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	startTime := s.now()
	cutoff := startTime.Add(-s.retention)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := s.store.DeleteExpiredQuests(ctx, cutoff, s.batchSize)
		if err != nil {
			s.logger.Error("Failed to delete expired quests",
				zap.Time("cutoff", cutoff),
				zap.Int64("deleted_so_far", total),
				zap.Error(err),
			)
			return total, fmt.Errorf("sweep expired quests: %w", err)
		}
		total += n
		if n < int64(s.batchSize) {
			break
		}
	}

	s.mu.Lock()
	s.lastRun, s.lastSwept = startTime, total
	s.mu.Unlock()

	s.logger.Info("Quest sweep completed",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", total),
		zap.Duration("duration", s.now().Sub(startTime)),
	)
	return total, nil
}

// Run 每 interval 执行一次，直到 ctx 结束
func (s *QuestSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			if _, err := s.SweepExpiredQuests(runCtx); err != nil {
				s.logger.Error("Quest sweep run failed", zap.Error(err))
			}
			cancel()
		}
	}
}
