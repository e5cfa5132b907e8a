package response

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"CityClaim/pkg/errors"
	"CityClaim/pkg/logger"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// SuccessResponse 统一的成功响应格式
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

var statusByCode = map[string]int{
	errors.InvalidRequest.Code:      http.StatusBadRequest,
	errors.InvalidUserID.Code:       http.StatusBadRequest,
	errors.TooFar.Code:              http.StatusBadRequest,
	errors.Unauthorized.Code:        http.StatusUnauthorized,
	errors.TargetNotFound.Code:      http.StatusNotFound,
	errors.NoCheckInToUndo.Code:     http.StatusNotFound,
	errors.ConcurrencyConflict.Code: http.StatusConflict,
	errors.CooldownActive.Code:      http.StatusTooManyRequests,
	errors.TooManyRequests.Code:     http.StatusTooManyRequests,
	errors.QuestUpstreamFailed.Code: http.StatusBadGateway,
}

// resolve 找到错误链上的 Definition；找不到时按内部错误处理，不向调用方暴露原始信息
func resolve(err error) (int, errors.Definition) {
	var def errors.Definition
	if !stderrors.As(err, &def) {
		return http.StatusInternalServerError, errors.InternalError
	}
	if status, ok := statusByCode[def.Code]; ok {
		return status, def
	}
	return http.StatusInternalServerError, def
}

// Error 返回错误响应，携带数据的错误会把数据放进 details
func Error(ctx context.Context, c *app.RequestContext, err error) {
	statusCode, def := resolve(err)

	var details map[string]interface{}
	var detailer errors.Detailer
	if stderrors.As(err, &detailer) {
		details = detailer.Details()
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Ctx(ctx).Error("Request failed",
			zap.String("path", string(c.Path())),
			zap.String("code", def.Code),
			zap.Error(err),
		)
	}

	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    def.Code,
			Message: def.Message,
			Details: details,
		},
	})
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	statusCode, def := resolve(err)

	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    def.Code,
			Message: def.Message,
			Details: details,
		},
	})
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
	})
}

// Created 201
func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data: data,
	})
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: err.Error(),
		},
	})
}
