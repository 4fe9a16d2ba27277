package repository

import (
	"context"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── stock_transactions relation (Postgres) ───────────────────────────────────

// appendSQL checks existence and inserts in one statement, so a concurrent
// delete can never slip between the two.
const appendSQL = `
INSERT INTO stock_transactions (product_id, actor_id, change_amount, note)
SELECT ?::uuid, ?::uuid, ?::integer, ?::text
WHERE EXISTS (SELECT 1 FROM products WHERE id = ?)
RETURNING id, seq, created_at`

func (e *pgExecutor) AppendTransaction(ctx context.Context, t *model.StockTransaction) error {
	var row struct {
		ID        uuid.UUID
		Seq       int64
		CreatedAt time.Time
	}
	err := e.run(ctx, func(tx *gorm.DB) error {
		res := tx.Raw(appendSQL, t.ProductID, t.ActorID, t.ChangeAmount, t.Note, t.ProductID).Scan(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return notFoundAs(err, "product not found")
	}
	t.ID = row.ID
	t.Seq = row.Seq
	t.CreatedAt = row.CreatedAt
	return nil
}

func (e *pgExecutor) SelectTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.TransactionEntry, error) {
	var entries []model.TransactionEntry
	err := e.run(ctx, func(tx *gorm.DB) error {
		q := tx.Table("stock_transactions AS t").
			Select(`t.id, t.seq, t.product_id, t.actor_id, t.change_amount, t.note, t.created_at,
				p.name AS product_name, p.sku AS product_sku`).
			Joins("LEFT JOIN products p ON p.id = t.product_id")
		if filter.ProductID != nil {
			q = q.Where("t.product_id = ?", *filter.ProductID)
		}
		return q.Order("t.seq DESC").Limit(NormalizeLimit(filter.Limit)).Scan(&entries).Error
	})
	return entries, err
}

// ── derived views ────────────────────────────────────────────────────────────

// SumChanges reads product_stock, which is keyed by products: a deleted
// product has no row even if orphaned ledger entries remain.
func (e *pgExecutor) SumChanges(ctx context.Context, productID uuid.UUID) (int64, error) {
	var level model.StockLevel
	err := e.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("product_id = ?", productID).First(&level).Error
	})
	if err != nil {
		return 0, notFoundAs(err, "product not found")
	}
	return level.CurrentStock, nil
}

func (e *pgExecutor) SelectStockLevels(ctx context.Context) ([]model.StockLevel, error) {
	var levels []model.StockLevel
	err := e.run(ctx, func(tx *gorm.DB) error {
		return tx.Find(&levels).Error
	})
	return levels, err
}

func (e *pgExecutor) SelectLowStock(ctx context.Context) ([]model.StockLevel, error) {
	var levels []model.StockLevel
	err := e.run(ctx, func(tx *gorm.DB) error {
		return tx.Table("low_stock_products").Order("current_stock ASC").Find(&levels).Error
	})
	return levels, err
}
