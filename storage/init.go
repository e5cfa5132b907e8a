package storage

import (
	"CityClaim/internal/queue"
	"CityClaim/storage/database"
	"CityClaim/storage/mq"
	"CityClaim/storage/redis"
)

// Init 统一初始化存储层：数据库 -> Redis -> RabbitMQ（含拓扑声明）
func Init() error {
	if err := database.Init(); err != nil {
		return err
	}

	if err := redis.Init(); err != nil {
		return err
	}

	if err := mq.Init(); err != nil {
		return err
	}

	return queue.DeclareTopology()
}
