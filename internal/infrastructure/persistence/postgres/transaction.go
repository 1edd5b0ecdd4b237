package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"story-crossref-api/internal/domain/repository"
)

// TxManager 基于 GORM 的事务管理器，实现 repository.Transactor
type TxManager struct {
	db *gorm.DB
}

// NewTxManager 创建事务管理器
func NewTxManager(client *Client) *TxManager {
	return &TxManager{db: client.DB()}
}

// WithTransaction 在事务中执行 fn，事务句柄通过 context 传递给仓储层
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "postgres.WithTransaction")
	defer span.End()

	// 已在事务中则直接复用，避免嵌套事务
	if _, ok := ctx.Value(repository.TxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, repository.TxKey{}, tx)
		return fn(txCtx)
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

// getDB 返回当前应使用的 DB 句柄：优先取 context 中的事务
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}
