package service

import (
	"context"

	"stockledger/internal/apperr"
	"stockledger/internal/metrics"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
)

// StockChange is a candidate ledger entry before the store accepts it.
type StockChange struct {
	ProductID uuid.UUID
	Amount    int
	Note      *string
}

// LedgerStore is the only writer of stock facts. It exposes no update or
// delete: the ledger is append-only.
type LedgerStore interface {
	Append(ctx context.Context, exec repository.Executor, change StockChange) (*model.StockTransaction, error)
	History(ctx context.Context, exec repository.Executor, filter model.TransactionFilter) ([]model.TransactionEntry, error)
}

type ledgerStore struct {
	metrics *metrics.Registry
}

func NewLedgerStore(m *metrics.Registry) LedgerStore {
	return &ledgerStore{metrics: m}
}

// Append records one change attributed to the executor's principal. A zero
// or out-of-range amount is refused before the store is reached; a missing
// product is NotFound. A retried call records a second fact.
func (s *ledgerStore) Append(ctx context.Context, exec repository.Executor, change StockChange) (*model.StockTransaction, error) {
	if change.Amount == 0 {
		return nil, surface(ctx, s.metrics, "ledger.append", apperr.InvalidArgument("change amount must be nonzero"))
	}
	if !model.ChangeAmountInRange(change.Amount) {
		return nil, surface(ctx, s.metrics, "ledger.append", apperr.InvalidArgument("change amount out of range"))
	}

	tx := &model.StockTransaction{
		ProductID:    change.ProductID,
		ActorID:      exec.Principal().ID,
		ChangeAmount: change.Amount,
		Note:         change.Note,
	}
	if err := exec.AppendTransaction(ctx, tx); err != nil {
		return nil, surface(ctx, s.metrics, "ledger.append", err)
	}
	s.metrics.IncStockChange()
	return tx, nil
}

// History lists entries newest first. Entries of deleted products are
// included with no product name or SKU.
func (s *ledgerStore) History(ctx context.Context, exec repository.Executor, filter model.TransactionFilter) ([]model.TransactionEntry, error) {
	filter.Limit = repository.NormalizeLimit(filter.Limit)
	entries, err := exec.SelectTransactions(ctx, filter)
	if err != nil {
		return nil, surface(ctx, s.metrics, "ledger.history", err)
	}
	return entries, nil
}
