package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"CityClaim/internal/engine"
	"CityClaim/internal/geo"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"cityclaim"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"cityclaim"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	// 只读副本 DSN，逗号分隔；统计查询走副本
	PostgreSQLReplicas  []string `env:"POSTGRESQL_REPLICA_DSNS" envSeparator:","`
	DatabaseAutoMigrate bool     `env:"DATABASE_AUTO_MIGRATE" envDefault:"false"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"cc"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// JWT 配置，令牌由鉴权服务签发，这里只校验
	JWTSecret        string `env:"JWT_SECRET"` // 必填
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"30"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪 / 指标
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`

	// 速率限制配置, 配置在中间件内
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"100"` // 每秒请求数

	// 打卡围栏
	CheckInRadiusMeters  float64 `env:"CHECKIN_RADIUS_METERS" envDefault:"50"`
	CheckInCooldownHours int     `env:"CHECKIN_COOLDOWN_HOURS" envDefault:"24"`

	// 积分规则
	PointsFirstVisit          int `env:"POINTS_FIRST_VISIT" envDefault:"20"`
	PointsRepeatVisit         int `env:"POINTS_REPEAT_VISIT" envDefault:"10"`
	PointsFriendBonus         int `env:"POINTS_FRIEND_BONUS" envDefault:"5"`
	PointsFriendBonusCap      int `env:"POINTS_FRIEND_BONUS_CAP" envDefault:"20"`
	PointsZoneCapture         int `env:"POINTS_ZONE_CAPTURE" envDefault:"25"`
	PointsNeighborhoodCapture int `env:"POINTS_NEIGHBORHOOD_CAPTURE" envDefault:"50"`
	PointsStreakPerDay        int `env:"POINTS_STREAK_PER_DAY" envDefault:"2"`
	PointsStreakCap           int `env:"POINTS_STREAK_CAP" envDefault:"20"`

	// 连续打卡按这个时区划分自然日（全服统一）
	StreakTimezone string `env:"STREAK_TIMEZONE" envDefault:"Asia/Shanghai"`

	// 统计缓存
	StatsCacheTTLSeconds int `env:"STATS_CACHE_TTL_SECONDS" envDefault:"300"`

	// 任务生成
	QuestAIEndpoint            string  `env:"QUEST_AI_ENDPOINT"`
	QuestAIAPIKey              string  `env:"QUEST_AI_API_KEY"`
	QuestAITimeoutSeconds      int     `env:"QUEST_AI_TIMEOUT_SECONDS" envDefault:"10"`
	QuestAIRPS                 float64 `env:"QUEST_AI_RPS" envDefault:"2"`
	QuestMaxPoints             int     `env:"QUEST_MAX_POINTS" envDefault:"100"`
	QuestFallbackCount         int     `env:"QUEST_FALLBACK_COUNT" envDefault:"3"`
	QuestCandidateRadiusMeters float64 `env:"QUEST_CANDIDATE_RADIUS_METERS" envDefault:"1500"`
	QuestDefaultWindowMinutes  int     `env:"QUEST_DEFAULT_WINDOW_MINUTES" envDefault:"120"`
}

// Load 读取 .env 和环境变量，只在进程入口调用一次
func Load() error {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		return fmt.Errorf("failed to parse environment variables: %w", err)
	}

	return validateConfig()
}

func validateConfig() error {
	if Cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if _, err := time.LoadLocation(Cfg.StreakTimezone); err != nil {
		return fmt.Errorf("invalid STREAK_TIMEZONE %q: %w", Cfg.StreakTimezone, err)
	}

	if Cfg.CheckInRadiusMeters <= 0 {
		return fmt.Errorf("CHECKIN_RADIUS_METERS must be positive")
	}

	if Cfg.QuestAIEndpoint == "" {
		log.Printf("WARN: QUEST_AI_ENDPOINT is not set, quests will come from templates only")
	}
	return nil
}

// Rules 积分规则
func (c *Config) Rules() engine.Rules {
	return engine.Rules{
		FirstVisitPoints:     c.PointsFirstVisit,
		RepeatVisitPoints:    c.PointsRepeatVisit,
		FriendBonusPerFriend: c.PointsFriendBonus,
		FriendBonusCap:       c.PointsFriendBonusCap,
		ZoneCaptureBonus:     c.PointsZoneCapture,
		NeighborhoodBonus:    c.PointsNeighborhoodCapture,
		StreakBonusPerDay:    c.PointsStreakPerDay,
		StreakBonusCap:       c.PointsStreakCap,
	}
}

// FenceRules 默认围栏规则，商户可以覆盖半径
func (c *Config) FenceRules() geo.FenceRules {
	return geo.FenceRules{
		RadiusMeters: c.CheckInRadiusMeters,
		Cooldown:     time.Duration(c.CheckInCooldownHours) * time.Hour,
	}
}

// StreakLocation 连续打卡使用的时区
func (c *Config) StreakLocation() *time.Location {
	loc, err := time.LoadLocation(c.StreakTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

// GetReplicaDSNs 去掉空白项
func (c *Config) GetReplicaDSNs() []string {
	out := make([]string, 0, len(c.PostgreSQLReplicas))
	for _, dsn := range c.PostgreSQLReplicas {
		if dsn = strings.TrimSpace(dsn); dsn != "" {
			out = append(out, dsn)
		}
	}
	return out
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
