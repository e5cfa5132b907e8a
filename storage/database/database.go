package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"CityClaim/config"
	dbotel "CityClaim/pkg/database"
	"CityClaim/pkg/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

// Init 打开主库，挂载只读副本和链路追踪插件
func Init() error {
	dbOnce.Do(func() {
		gormDB, err := open(config.Cfg)
		if err != nil {
			dbErr = err
			logger.L().Error("Database init failed", zap.Error(err))
			return
		}
		db = gormDB
		logger.L().Info("Database initialized",
			zap.String("host", config.Cfg.PostgreSQLHost),
			zap.Int("replicas", len(config.Cfg.GetReplicaDSNs())),
		)
	})

	return dbErr
}

func open(cfg config.Config) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.GetDSN()), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := useReplicas(gormDB, cfg.GetReplicaDSNs()); err != nil {
		return nil, fmt.Errorf("register replicas: %w", err)
	}

	if cfg.OTelEnabled {
		// 追踪插件失败不影响启动
		if err := dbotel.WithDefaultOTELPlugin(gormDB, cfg.ServiceName); err != nil {
			logger.L().Warn("gorm tracing plugin not registered", zap.Error(err))
		}
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	configureConnectionPool(sqlDB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if cfg.DatabaseAutoMigrate {
		if err := Migrate(gormDB); err != nil {
			return nil, err
		}
	}
	return gormDB, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}
}

// useReplicas 读走副本；事务和 FOR UPDATE 由 dbresolver 固定在主库
func useReplicas(gormDB *gorm.DB, dsns []string) error {
	if len(dsns) == 0 {
		return nil
	}

	replicas := make([]gorm.Dialector, 0, len(dsns))
	for _, dsn := range dsns {
		replicas = append(replicas, postgres.Open(dsn))
	}

	return gormDB.Use(dbresolver.Register(dbresolver.Config{
		Replicas:          replicas,
		Policy:            dbresolver.RandomPolicy{},
		TraceResolverMode: true,
	}).
		SetMaxIdleConns(config.Cfg.PostgreSQLMaxIdle).
		SetMaxOpenConns(config.Cfg.PostgreSQLMaxOpen).
		SetConnMaxIdleTime(10 * time.Minute).
		SetConnMaxLifetime(2 * time.Hour))
}

func DB() *gorm.DB {
	return db
}

// Close 关闭连接池，ctx 超时则放弃等待
func Close(ctx context.Context) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- sqlDB.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func configureConnectionPool(sqlDB *sql.DB) {
	cfg := config.Cfg

	sqlDB.SetMaxIdleConns(cfg.PostgreSQLMaxIdle)
	sqlDB.SetMaxOpenConns(cfg.PostgreSQLMaxOpen)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(2 * time.Hour)
}
