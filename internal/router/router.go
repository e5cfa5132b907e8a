package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"CityClaim/config"
	"CityClaim/internal/handler"
	"CityClaim/internal/middleware"
)

func Register(h *server.Hertz) {
	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	if config.Cfg.OTelEnabled {
		h.Use(middleware.OpenTelemetryMiddleware())
	}

	h.GET("/healthz", handler.Healthz)

	v1 := h.Group("/v1")
	v1.Use(middleware.AuthMiddleware(), middleware.GeneralRateLimitMiddleware())

	// 打卡与领地
	checkIns := v1.Group("/checkins")
	{
		checkIns.POST("", middleware.CheckInRateLimitMiddleware(), handler.CreateCheckIn)
		checkIns.POST("/undo", middleware.CheckInRateLimitMiddleware(), handler.UndoCheckIn)
		checkIns.GET("/stats", handler.GetCheckInStats)
		checkIns.GET("/history", handler.GetCheckInHistory)
	}

	// 任务
	quests := v1.Group("/quests")
	{
		quests.GET("", handler.ListQuests)
		quests.POST("/generate", middleware.QuestRateLimitMiddleware(), handler.GenerateQuests)
	}
}
