package service

import (
	"context"
	"time"

	"stockledger/internal/metrics"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
)

// AlertNotifier receives low-stock alerts. Delivery is best effort.
type AlertNotifier interface {
	NotifyLowStock(ctx context.Context, alert model.LowStockAlert) error
}

// StockChangeResult is what a recorded change returns: the accepted fact and
// the product's projection right after it.
type StockChangeResult struct {
	Transaction *model.StockTransaction
	Product     *model.Product
	Projection  *Projection
}

// LedgerService records stock changes. Authorization is entirely the
// executor's: this layer never inspects the principal's role.
type LedgerService interface {
	RecordStockChange(ctx context.Context, exec repository.Executor, productID uuid.UUID, amount int, note *string) (*StockChangeResult, error)
}

type ledgerService struct {
	catalog    CatalogService
	ledger     LedgerStore
	projection StockProjection
	notifier   AlertNotifier
	metrics    *metrics.Registry
}

// NewLedgerService wires the collaborators. notifier may be nil.
func NewLedgerService(catalog CatalogService, ledger LedgerStore, projection StockProjection, notifier AlertNotifier, m *metrics.Registry) LedgerService {
	return &ledgerService{catalog: catalog, ledger: ledger, projection: projection, notifier: notifier, metrics: m}
}

func (s *ledgerService) RecordStockChange(ctx context.Context, exec repository.Executor, productID uuid.UUID, amount int, note *string) (*StockChangeResult, error) {
	product, err := s.catalog.Read(ctx, exec, productID)
	if err != nil {
		return nil, err
	}

	tx, err := s.ledger.Append(ctx, exec, StockChange{ProductID: productID, Amount: amount, Note: note})
	if err != nil {
		return nil, err
	}

	proj, err := s.projection.Project(ctx, exec, productID)
	if err != nil {
		return nil, err
	}

	if proj.LowStock && s.notifier != nil {
		alert := model.LowStockAlert{
			ProductID:        product.ID,
			SKU:              product.SKU,
			Name:             product.Name,
			CurrentStock:     proj.CurrentStock,
			ReorderThreshold: proj.ReorderThreshold,
			ActorID:          tx.ActorID,
			TransactionID:    tx.ID,
			RaisedAt:         time.Now().UTC(),
		}
		if err := s.notifier.NotifyLowStock(ctx, alert); err != nil {
			logger(ctx).Warn().Err(err).Str("product_id", productID.String()).Msg("low-stock alert not queued")
		}
	}

	return &StockChangeResult{Transaction: tx, Product: product, Projection: proj}, nil
}
