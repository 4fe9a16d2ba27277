package repository

import (
	"context"

	"stockledger/internal/model"

	"github.com/google/uuid"
)

// Executor is a request-bound handle that performs store operations under one
// principal's permissions only. Authorization is decided by the backend that
// minted it; callers never re-check permissions.
//
// Every method returns errors already classified into the apperr taxonomy.
type Executor interface {
	Principal() model.Principal

	// products relation
	InsertProduct(ctx context.Context, p *model.Product) error
	SelectProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, changes model.ProductChanges) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	// stock_transactions relation (append-only: there is no update or delete)
	AppendTransaction(ctx context.Context, t *model.StockTransaction) error
	SelectTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.TransactionEntry, error)

	// derived read views
	SumChanges(ctx context.Context, productID uuid.UUID) (int64, error)
	SelectStockLevels(ctx context.Context) ([]model.StockLevel, error)
	SelectLowStock(ctx context.Context) ([]model.StockLevel, error)
}

// Backend mints executors. Scope is the credential exchange with the store:
// the returned executor carries the principal's verified claims to the
// backend, which enforces what that principal may read or write.
type Backend interface {
	Scope(ctx context.Context, principal model.Principal, credential string) (Executor, error)
	Ping(ctx context.Context) error
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// NormalizeLimit clamps a history page size.
func NormalizeLimit(limit int) int {
	if limit < 1 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
