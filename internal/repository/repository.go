package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository 打卡引擎的数据访问。所有方法都可以在事务里使用：WithTx 返回绑定到 tx 的副本
type Repository struct {
	db *gorm.DB
}

// New 创建 Repository
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB 返回底层连接
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// WithTx 绑定到事务
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Transaction 在一个事务里执行 fn，fn 拿到的 Repository 绑定到该事务
func (r *Repository) Transaction(ctx context.Context, op string, fn func(tx *Repository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
	if err != nil {
		return classify(op, err)
	}
	return nil
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
