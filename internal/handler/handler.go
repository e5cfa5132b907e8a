package handler

import (
	"context"

	"CityClaim/internal/model/dto"
	"CityClaim/internal/service"
)

// CheckInAPI 打卡相关的服务能力，handler 只依赖这个接口
type CheckInAPI interface {
	CheckIn(ctx context.Context, userID int64, req dto.CreateCheckInRequest) (*dto.CheckInResponse, error)
	Undo(ctx context.Context, userID int64, req dto.UndoCheckInRequest) (*dto.UndoCheckInResponse, error)
	Stats(ctx context.Context, userID int64) (*dto.CheckInStats, error)
	History(ctx context.Context, userID int64, q dto.CheckInHistoryQuery) (*dto.CheckInHistoryResponse, error)
}

// QuestAPI 任务生成与查询
type QuestAPI interface {
	Generate(ctx context.Context, userID int64, req dto.GenerateQuestsRequest) (*dto.GenerateQuestsResponse, error)
	List(ctx context.Context, userID int64) (*dto.QuestListResponse, error)
}

// 默认走 service 单例，测试里替换
var (
	checkIns = func() CheckInAPI { return service.CheckIn() }
	quests   = func() QuestAPI { return service.Quest() }
)
