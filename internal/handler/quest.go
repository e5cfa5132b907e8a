package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"CityClaim/internal/middleware"
	"CityClaim/internal/model/dto"
	"CityClaim/pkg/errors"
	"CityClaim/pkg/response"
)

// GenerateQuests 为当前位置生成一批任务
// POST /v1/quests/generate
func GenerateQuests(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}

	var req dto.GenerateQuestsRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := quests().Generate(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, result)
}

// ListQuests 当前可领取的任务
// GET /v1/quests
func ListQuests(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}

	result, err := quests().List(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
