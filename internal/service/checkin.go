package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"CityClaim/config"
	"CityClaim/internal/cache"
	"CityClaim/internal/engine"
	"CityClaim/internal/geo"
	"CityClaim/internal/model"
	"CityClaim/internal/model/dto"
	"CityClaim/internal/queue"
	"CityClaim/internal/repository"
	"CityClaim/pkg/logger"
	"CityClaim/pkg/metrics"
	"CityClaim/pkg/snowflake"
	"CityClaim/storage/database"
)

// CheckInService 打卡、撤销、统计
type CheckInService struct {
	repo   *repository.Repository
	locker Locker
	events EventPublisher
	stats  StatsCache

	rules engine.Rules
	fence geo.FenceRules
	loc   *time.Location

	nextID func() (int64, error)
	now    func() time.Time
}

// CheckInOptions 构造参数，零值字段使用默认值
type CheckInOptions struct {
	Repo     *repository.Repository
	Locker   Locker
	Events   EventPublisher
	Stats    StatsCache
	Rules    engine.Rules
	Fence    geo.FenceRules
	Location *time.Location
	NextID   func() (int64, error)
	Now      func() time.Time
}

// NewCheckInService 创建打卡服务
func NewCheckInService(opts CheckInOptions) *CheckInService {
	s := &CheckInService{
		repo:   opts.Repo,
		locker: opts.Locker,
		events: opts.Events,
		stats:  opts.Stats,
		rules:  opts.Rules,
		fence:  opts.Fence,
		loc:    opts.Location,
		nextID: opts.NextID,
		now:    opts.Now,
	}
	if s.fence.RadiusMeters <= 0 {
		s.fence = geo.DefaultFenceRules()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.nextID == nil {
		s.nextID = snowflake.NextID
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

var (
	checkInService *CheckInService
	checkInOnce    sync.Once
)

// CheckIn 进程级单例，依赖 storage 与 config 已初始化
func CheckIn() *CheckInService {
	checkInOnce.Do(func() {
		checkInService = NewCheckInService(CheckInOptions{
			Repo:     repository.New(database.DB()),
			Locker:   cache.NewUserLocker(cache.UserLockTTL),
			Events:   queue.DefaultProducer(),
			Stats:    cache.NewStatsCache(time.Duration(config.Cfg.StatsCacheTTLSeconds) * time.Second),
			Rules:    config.Cfg.Rules(),
			Fence:    config.Cfg.FenceRules(),
			Location: config.Cfg.StreakLocation(),
		})
	})

	return checkInService
}

// checkInOutcome 事务内算出的结果，提交后用于响应和事件
type checkInOutcome struct {
	effects      engine.CheckInEffects
	isFirstVisit bool
	distance     float64
	business     *model.Business
}

// CheckIn 一次打卡：围栏 -> 区域解析 -> 占领状态机 -> 积分 -> 连续天数，全部在一个事务里
func (s *CheckInService) CheckIn(ctx context.Context, userID int64, req dto.CreateCheckInRequest) (*dto.CheckInResponse, error) {
	claimed := geo.Point{Lat: req.Latitude, Lng: req.Longitude}

	var out *checkInOutcome
	err := runExclusive(ctx, s.locker, userID, "check-in", func() error {
		var err error
		out, err = s.checkInTx(ctx, userID, req.BusinessID, claimed, req.FriendIDs)
		return err
	})
	if err != nil {
		metrics.RecordCheckInRejected(ctx, rejectionReason(err))
		if rejectionReason(err) == "internal" {
			logger.Ctx(ctx).Error("Check-in failed",
				zap.Int64("user_id", userID),
				zap.Int64("business_id", req.BusinessID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	fx := out.effects
	logger.L().Info("Check-in accepted",
		zap.Int64("user_id", userID),
		zap.Int64("business_id", req.BusinessID),
		zap.Int64("check_in_id", fx.CheckIn.ID),
		zap.Float64("distance_meters", out.distance),
		zap.Int("points", fx.CheckIn.Points.Total),
		zap.Int("streak_days", fx.StreakDays),
		zap.Bool("zone_captured", fx.Capture.NewZoneCaptured()),
		zap.Bool("neighborhood_captured", fx.Capture.NewNeighborhoodCaptured()),
	)
	metrics.RecordCheckIn(ctx, out.isFirstVisit, fx.CheckIn.Points.Total)
	metrics.RecordCapture(ctx, fx.Capture.NewZoneCaptured(), fx.Capture.NewNeighborhoodCaptured())

	s.afterCommit(ctx, userID)
	s.publishCheckIn(ctx, out)

	return buildCheckInResponse(out), nil
}

func (s *CheckInService) checkInTx(ctx context.Context, userID, businessID int64, claimed geo.Point, friendIDs []int64) (*checkInOutcome, error) {
	var out *checkInOutcome

	err := s.repo.Transaction(ctx, "check-in", func(tx *repository.Repository) error {
		now := s.now()

		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		biz, err := tx.GetBusiness(ctx, businessID)
		if err != nil {
			return err
		}

		last, err := tx.LastCheckIn(ctx, userID, businessID)
		if err != nil {
			return err
		}
		var lastAt *time.Time
		if last != nil {
			lastAt = &last.CreatedAt
		}

		distance, err := geo.ValidateFence(claimed, biz.Point(), s.fence.WithRadius(biz.RadiusMeters), lastAt, now)
		if err != nil {
			return err
		}

		zoneID, capture, err := s.captureInput(ctx, tx, userID, biz)
		if err != nil {
			return err
		}
		plan := engine.PlanCapture(capture, now)

		streak, err := s.nextStreak(ctx, tx, user, now)
		if err != nil {
			return err
		}

		promotion, err := tx.ActivePromotionBonus(ctx, businessID, now)
		if err != nil {
			return err
		}

		var claim *engine.QuestClaimRecord
		quest, err := tx.FindRedeemableQuest(ctx, userID, businessID, now)
		if err != nil {
			return err
		}
		if quest != nil {
			claim = &engine.QuestClaimRecord{QuestID: quest.ID, Points: quest.Points, PercentOff: quest.PercentOff}
		}

		facts := engine.VisitFacts{
			IsFirstVisit:            last == nil,
			FriendCount:             countFriends(userID, friendIDs),
			PromotionBonus:          promotion,
			NewZoneCaptured:         plan.NewZoneCaptured(),
			NewNeighborhoodCaptured: plan.NewNeighborhoodCaptured(),
			StreakDays:              streak,
		}
		if claim != nil {
			facts.QuestBonus = claim.Points
		}
		breakdown := engine.Calculate(s.rules, facts)

		id, err := s.nextID()
		if err != nil {
			return err
		}

		fx := engine.CheckInEffects{
			UserID: userID,
			Now:    now,
			CheckIn: engine.CheckInRecord{
				ID:         id,
				UserID:     userID,
				BusinessID: businessID,
				Latitude:   claimed.Lat,
				Longitude:  claimed.Lng,
				ZoneID:     zoneID,
				Points:     breakdown,
				CreatedAt:  now,
			},
			PointsDelta:     int64(breakdown.Total),
			StreakDays:      streak,
			LastCheckInDate: engine.DayOf(now, s.loc),
			Capture:         plan,
			QuestClaim:      claim,
		}
		if err := tx.ApplyCheckInEffects(ctx, fx); err != nil {
			return err
		}

		out = &checkInOutcome{
			effects:      fx,
			isFirstVisit: facts.IsFirstVisit,
			distance:     distance,
			business:     biz,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// captureInput 解析商户所在区域，并在事务内读取占领状态和街区实时计数
func (s *CheckInService) captureInput(ctx context.Context, tx *repository.Repository, userID int64, biz *model.Business) (*int64, engine.CaptureInput, error) {
	zones, err := tx.ListZones(ctx)
	if err != nil {
		return nil, engine.CaptureInput{}, err
	}

	zone, ok := resolveZone(zones, biz.Point())
	if !ok {
		return nil, engine.CaptureInput{}, nil
	}

	in := engine.CaptureInput{
		ZoneID:   zone.ID,
		ZoneName: zone.Name,
		Resolved: true,
	}

	progress, err := tx.GetZoneProgress(ctx, userID, zone.ID)
	if err != nil {
		return nil, in, err
	}
	in.AlreadyCaptured = progress != nil && progress.Captured

	if !in.AlreadyCaptured && zone.Neighborhood != "" {
		others, err := tx.CountCapturedInNeighborhood(ctx, userID, zone.Neighborhood, zone.ID)
		if err != nil {
			return nil, in, err
		}
		total, err := tx.CountZonesInNeighborhood(ctx, zone.Neighborhood)
		if err != nil {
			return nil, in, err
		}
		in.Neighborhood = zone.Neighborhood
		in.NeighborhoodCapturedOthers = others
		in.NeighborhoodTotal = total
		in.NeighborhoodWasFully = engine.FullyCaptured(others, total)
	}

	id := zone.ID
	return &id, in, nil
}

// nextStreak 昨天（连续打卡时区）是否打过卡、今天是否第一次
func (s *CheckInService) nextStreak(ctx context.Context, tx *repository.Repository, user *model.User, now time.Time) (int, error) {
	yesterday, today, tomorrow := engine.DayWindow(now, s.loc)

	yCount, err := tx.CountCheckInsBetween(ctx, user.ID, yesterday, today)
	if err != nil {
		return 0, err
	}
	tCount, err := tx.CountCheckInsBetween(ctx, user.ID, today, tomorrow)
	if err != nil {
		return 0, err
	}
	return engine.NextStreak(user.StreakDays, yCount > 0, tCount == 0), nil
}

// resolveZone 区域集合每次实时读取，按 ID 升序，第一个命中的区域胜出
func resolveZone(zones []model.Zone, p geo.Point) (model.Zone, bool) {
	shapes := make([]geo.ZoneShape, len(zones))
	byID := make(map[int64]model.Zone, len(zones))
	for i, z := range zones {
		shapes[i] = z.Shape()
		byID[z.ID] = z
	}

	id, ok := geo.NewResolver(shapes).Resolve(p)
	if !ok {
		return model.Zone{}, false
	}
	return byID[id], true
}

// countFriends 去重并排除自己
func countFriends(userID int64, friendIDs []int64) int {
	seen := make(map[int64]struct{}, len(friendIDs))
	for _, id := range friendIDs {
		if id <= 0 || id == userID {
			continue
		}
		seen[id] = struct{}{}
	}
	return len(seen)
}

// afterCommit 失效统计缓存
func (s *CheckInService) afterCommit(ctx context.Context, userID int64) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(ctx, userID); err != nil {
		logger.L().Warn("Failed to invalidate stats cache",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}

func (s *CheckInService) publishCheckIn(ctx context.Context, out *checkInOutcome) {
	if s.events == nil {
		return
	}
	fx := out.effects

	publish := func(kind string, err error) {
		if err != nil {
			logger.Ctx(ctx).Warn("Failed to publish event",
				zap.String("event", kind),
				zap.Int64("user_id", fx.UserID),
				zap.Int64("check_in_id", fx.CheckIn.ID),
				zap.Error(err),
			)
		}
	}

	publish(queue.RoutingCheckInCreated, s.events.PublishCheckInCreated(ctx, queue.CheckInCreatedMessage{
		MessageID:    uuid.NewString(),
		CheckInID:    fx.CheckIn.ID,
		UserID:       fx.UserID,
		BusinessID:   fx.CheckIn.BusinessID,
		ZoneID:       fx.CheckIn.ZoneID,
		PointsEarned: fx.CheckIn.Points.Total,
		StreakDays:   fx.StreakDays,
		OccurredAt:   fx.Now,
	}))

	if z := fx.Capture.Zone; z != nil {
		publish(queue.RoutingZoneCaptured, s.events.PublishZoneCaptured(ctx, queue.ZoneCapturedMessage{
			MessageID:  uuid.NewString(),
			UserID:     fx.UserID,
			ZoneID:     z.ZoneID,
			ZoneName:   z.ZoneName,
			OccurredAt: fx.Now,
		}))
	}

	if fx.Capture.NewNeighborhoodCaptured() {
		n := fx.Capture.Neighborhood.After
		publish(queue.RoutingNeighborhoodCaptured, s.events.PublishNeighborhoodCaptured(ctx, queue.NeighborhoodCapturedMessage{
			MessageID:     uuid.NewString(),
			UserID:        fx.UserID,
			Name:          n.Name,
			ZonesCaptured: n.ZonesCaptured,
			TotalZones:    n.TotalZones,
			OccurredAt:    fx.Now,
		}))
	}

	// 到访后为附近生成新任务，由 worker 异步处理
	publish(queue.RoutingQuestGenerate, s.events.PublishQuestGenerate(ctx, queue.QuestGenerateMessage{
		MessageID:   uuid.NewString(),
		UserID:      fx.UserID,
		Latitude:    out.business.Latitude,
		Longitude:   out.business.Longitude,
		RequestedAt: fx.Now,
	}))
}

func buildCheckInResponse(out *checkInOutcome) *dto.CheckInResponse {
	fx := out.effects
	resp := &dto.CheckInResponse{
		ID:           fx.CheckIn.ID,
		BusinessID:   fx.CheckIn.BusinessID,
		Points:       fx.CheckIn.Points,
		IsFirstVisit: out.isFirstVisit,
		StreakDays:   fx.StreakDays,
		CreatedAt:    fx.CheckIn.CreatedAt,
	}

	if z := fx.Capture.Zone; z != nil {
		resp.ZoneCapture = &dto.ZoneCaptureData{ZoneID: z.ZoneID, ZoneName: z.ZoneName}
	}
	if fx.Capture.NewNeighborhoodCaptured() {
		n := fx.Capture.Neighborhood.After
		resp.NeighborhoodCapture = &dto.NeighborhoodCaptureData{
			Name:          n.Name,
			ZonesCaptured: n.ZonesCaptured,
			TotalZones:    n.TotalZones,
		}
	}
	if q := fx.QuestClaim; q != nil {
		resp.QuestRedemption = &dto.QuestRedemptionData{
			QuestID:    q.QuestID,
			Points:     q.Points,
			PercentOff: q.PercentOff,
		}
	}
	return resp
}
