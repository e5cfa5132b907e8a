package service

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"CityClaim/config"
	"CityClaim/internal/geo"
	"CityClaim/internal/model"
	"CityClaim/internal/model/dto"
	"CityClaim/internal/queue"
	"CityClaim/internal/quest"
	"CityClaim/internal/repository"
	"CityClaim/pkg/errors"
	"CityClaim/pkg/logger"
	"CityClaim/pkg/metrics"
	"CityClaim/pkg/snowflake"
	"CityClaim/storage/database"
)

const (
	metersPerDegree   = 111320.0
	maxCandidates     = 200
	maxWindowMinutes  = 24 * 60
	maxQuestsPerBatch = 10
)

// QuestService 任务生成与查询
type QuestService struct {
	repo      *repository.Repository
	generator quest.Generator

	maxPoints     int
	fallbackCount int
	radius        float64
	defaultWindow int
	loc           *time.Location

	nextID quest.IDGenerator
	now    func() time.Time
}

// QuestOptions 构造参数
type QuestOptions struct {
	Repo          *repository.Repository
	Generator     quest.Generator // nil 时只走模板
	MaxPoints     int
	FallbackCount int
	RadiusMeters  float64
	WindowMinutes int
	Location      *time.Location
	NextID        quest.IDGenerator
	Now           func() time.Time
}

// NewQuestService 创建任务服务
func NewQuestService(opts QuestOptions) *QuestService {
	s := &QuestService{
		repo:          opts.Repo,
		generator:     opts.Generator,
		maxPoints:     opts.MaxPoints,
		fallbackCount: opts.FallbackCount,
		radius:        opts.RadiusMeters,
		defaultWindow: opts.WindowMinutes,
		loc:           opts.Location,
		nextID:        opts.NextID,
		now:           opts.Now,
	}
	if s.maxPoints <= 0 {
		s.maxPoints = 100
	}
	if s.fallbackCount <= 0 {
		s.fallbackCount = 3
	}
	if s.radius <= 0 {
		s.radius = 1500
	}
	if s.defaultWindow <= 0 {
		s.defaultWindow = 120
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.nextID == nil {
		s.nextID = snowflake.MustNextID
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

var (
	questService *QuestService
	questOnce    sync.Once
)

// Quest 进程级单例
func Quest() *QuestService {
	questOnce.Do(func() {
		cfg := config.Cfg

		var gen quest.Generator
		if cfg.QuestAIEndpoint != "" {
			c, err := quest.NewClient(quest.ClientConfig{
				Endpoint: cfg.QuestAIEndpoint,
				APIKey:   cfg.QuestAIAPIKey,
				Timeout:  time.Duration(cfg.QuestAITimeoutSeconds) * time.Second,
				RPS:      cfg.QuestAIRPS,
			})
			if err != nil {
				logger.L().Error("Failed to create quest client, using templates only", zap.Error(err))
			} else {
				gen = c
			}
		}

		questService = NewQuestService(QuestOptions{
			Repo:          repository.New(database.DB()),
			Generator:     gen,
			MaxPoints:     cfg.QuestMaxPoints,
			FallbackCount: cfg.QuestFallbackCount,
			RadiusMeters:  cfg.QuestCandidateRadiusMeters,
			WindowMinutes: cfg.QuestDefaultWindowMinutes,
			Location:      cfg.StreakLocation(),
		})
	})

	return questService
}

// Generate 候选 -> 上游 -> 校验（-> 模板兜底），校验通过的一批任务落库
func (s *QuestService) Generate(ctx context.Context, userID int64, req dto.GenerateQuestsRequest) (*dto.GenerateQuestsResponse, error) {
	now := s.now()
	origin := geo.Point{Lat: req.Latitude, Lng: req.Longitude}

	window := req.WindowMinutes
	if window <= 0 {
		window = s.defaultWindow
	}
	if window > maxWindowMinutes {
		window = maxWindowMinutes
	}

	candidates, err := s.candidates(ctx, origin, now)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	resp := &dto.GenerateQuestsResponse{BatchID: batchID, Source: quest.SourceTemplate, Quests: []dto.QuestItem{}}
	if len(candidates) == 0 {
		logger.L().Info("No quest candidates nearby",
			zap.Int64("user_id", userID),
			zap.Float64("lat", origin.Lat),
			zap.Float64("lng", origin.Lng),
		)
		return resp, nil
	}

	quests, suggested := s.suggest(ctx, userID, origin, window, candidates, now)
	source := quest.SourceAI
	if quests == nil {
		source = quest.SourceTemplate
		quests = quest.Fallback(candidates, s.fallbackCount, time.Duration(window)*time.Minute, s.nextID, now)
	}

	rows := make([]model.Quest, 0, len(quests))
	for _, q := range quests {
		rows = append(rows, model.Quest{
			ID:         q.ID,
			UserID:     userID,
			BusinessID: q.BusinessID,
			Type:       q.Type,
			Title:      q.Title,
			Prompt:     q.Prompt,
			Points:     q.Points,
			PercentOff: q.PercentOff,
			ExpiresAt:  q.ExpiresAt,
			Source:     q.Source,
			BatchID:    batchID,
			CreatedAt:  now,
		})
	}
	if err := s.repo.CreateQuests(ctx, rows); err != nil {
		return nil, err
	}

	rejected := 0
	if source == quest.SourceAI {
		rejected = suggested - len(quests)
	}
	metrics.RecordQuestBatch(ctx, source, len(rows), rejected)
	logger.L().Info("Quest batch generated",
		zap.Int64("user_id", userID),
		zap.String("batch_id", batchID),
		zap.String("source", source),
		zap.Int("quests", len(rows)),
		zap.Int("rejected", rejected),
	)

	resp.Source = source
	for _, r := range rows {
		resp.Quests = append(resp.Quests, questItem(r))
	}
	return resp, nil
}

// suggest 调用上游并校验。任何失败都返回 nil，由调用方走模板
func (s *QuestService) suggest(ctx context.Context, userID int64, origin geo.Point, window int, candidates []quest.Candidate, now time.Time) ([]quest.Quest, int) {
	if s.generator == nil {
		return nil, 0
	}

	batch, err := s.generator.Suggest(ctx, quest.GenerateRequest{
		Origin:        origin,
		WindowMinutes: window,
		MaxQuests:     maxQuestsPerBatch,
		Candidates:    candidates,
	})
	if err != nil {
		logger.Ctx(ctx).Warn("Quest upstream failed, falling back to templates",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil, 0
	}

	quests, err := quest.Validate(batch, candidates, quest.Limits{
		Window:    time.Duration(window) * time.Minute,
		MaxPoints: s.maxPoints,
	}, s.nextID, now)
	if err != nil {
		var verr *errors.QuestValidationError
		if stderrors.As(err, &verr) {
			metrics.RecordQuestBatch(ctx, quest.SourceAI, 0, verr.Rejected)
		}
		logger.Ctx(ctx).Warn("Quest suggestions rejected, falling back to templates",
			zap.Int64("user_id", userID),
			zap.Int("suggested", len(batch)),
			zap.Error(err),
		)
		return nil, len(batch)
	}
	return quests, len(batch)
}

// candidates 先用经纬度包围盒粗筛，再按真实距离过滤
func (s *QuestService) candidates(ctx context.Context, origin geo.Point, now time.Time) ([]quest.Candidate, error) {
	dLat := s.radius / metersPerDegree
	cos := math.Cos(origin.Lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	dLng := s.radius / (metersPerDegree * cos)

	list, err := s.repo.ListBusinessesInBox(ctx, origin.Lat-dLat, origin.Lng-dLng, origin.Lat+dLat, origin.Lng+dLng, maxCandidates)
	if err != nil {
		return nil, err
	}

	places := make([]quest.Place, 0, len(list))
	for _, b := range list {
		places = append(places, quest.Place{
			BusinessID:     b.ID,
			Name:           b.Name,
			Category:       b.Category,
			Location:       b.Point(),
			MinPercentOff:  b.MinPercentOff,
			MaxPercentOff:  b.MaxPercentOff,
			OpensAtMinute:  b.OpensAtMinute,
			ClosesAtMinute: b.ClosesAtMinute,
		})
	}
	return quest.BuildCandidates(places, origin, now, s.radius, s.loc), nil
}

// List 用户当前可兑换的任务
func (s *QuestService) List(ctx context.Context, userID int64) (*dto.QuestListResponse, error) {
	rows, err := s.repo.ListActiveQuests(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	resp := &dto.QuestListResponse{Quests: make([]dto.QuestItem, 0, len(rows))}
	for _, r := range rows {
		resp.Quests = append(resp.Quests, questItem(r))
	}
	return resp, nil
}

// HandleGenerateMessage worker 消费 quest.generate 的入口
func (s *QuestService) HandleGenerateMessage(ctx context.Context, msg queue.QuestGenerateMessage) error {
	_, err := s.Generate(ctx, msg.UserID, dto.GenerateQuestsRequest{
		Latitude:      msg.Latitude,
		Longitude:     msg.Longitude,
		WindowMinutes: msg.WindowMinutes,
	})
	return err
}

func questItem(q model.Quest) dto.QuestItem {
	return dto.QuestItem{
		ID:         q.ID,
		BusinessID: q.BusinessID,
		Type:       q.Type,
		Title:      q.Title,
		Prompt:     q.Prompt,
		Points:     q.Points,
		PercentOff: q.PercentOff,
		ExpiresAt:  q.ExpiresAt,
		Source:     q.Source,
	}
}
