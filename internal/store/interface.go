// Package store defines the persistence boundary. Repositories are grouped
// under a UnitOfWork so multi-row writes commit or roll back together.
package store

import (
	"context"

	"ordex/internal/store/model"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	// Trades returns the trade result repository within this transaction.
	Trades() TradeRepository
	// Orders returns the order repository within this transaction.
	Orders() OrderRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Close closes the store connection.
	Close() error
}

// TradeRepository persists execution results.
type TradeRepository interface {
	Save(ctx context.Context, trade *model.TradeResultModel) error
	FindByTradeID(ctx context.Context, tradeID string) (*model.TradeResultModel, error)
	ListRecent(ctx context.Context, limit int) ([]model.TradeResultModel, error)
}

// OrderRepository persists terminal order snapshots.
type OrderRepository interface {
	SaveConditional(ctx context.Context, order *model.ConditionalOrderModel) error
	SaveLimit(ctx context.Context, order *model.LimitOrderModel) error
	ListConditional(ctx context.Context, limit int) ([]model.ConditionalOrderModel, error)
	ListLimit(ctx context.Context, limit int) ([]model.LimitOrderModel, error)
}
