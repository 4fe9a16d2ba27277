package repository

import (
	"context"
	"time"

	"stockledger/internal/apperr"
	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── products relation (Postgres) ─────────────────────────────────────────────

func (e *pgExecutor) InsertProduct(ctx context.Context, p *model.Product) error {
	return e.run(ctx, func(tx *gorm.DB) error {
		return tx.Create(p).Error
	})
}

func (e *pgExecutor) SelectProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := e.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).First(&p).Error
	})
	if err != nil {
		return nil, notFoundAs(err, "product not found")
	}
	return &p, nil
}

func (e *pgExecutor) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := e.run(ctx, func(tx *gorm.DB) error {
		return tx.Order("name ASC").Order("id ASC").Find(&products).Error
	})
	return products, err
}

// UpdateProduct writes only the supplied fields. An UPDATE the read policy
// hides affects zero rows and reads as NotFound; one the write policy rejects
// raises 42501 and reads as Forbidden.
func (e *pgExecutor) UpdateProduct(ctx context.Context, id uuid.UUID, changes model.ProductChanges) (*model.Product, error) {
	var p model.Product
	err := e.run(ctx, func(tx *gorm.DB) error {
		if !changes.Empty() {
			updates := map[string]any{"updated_at": time.Now().UTC()}
			if changes.Name != nil {
				updates["name"] = *changes.Name
			}
			if changes.Description != nil {
				updates["description"] = *changes.Description
			}
			if changes.ReorderThreshold != nil {
				updates["reorder_threshold"] = *changes.ReorderThreshold
			}
			res := tx.Model(&model.Product{}).Where("id = ?", id).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return tx.Where("id = ?", id).First(&p).Error
	})
	if err != nil {
		return nil, notFoundAs(err, "product not found")
	}
	return &p, nil
}

// DeleteProduct hard-deletes the row. Ledger entries are left in place.
// DELETE policies filter silently, so a zero-row delete is disambiguated by
// checking whether the row is still visible.
func (e *pgExecutor) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	err := e.run(ctx, func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&model.Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		var visible int64
		if err := tx.Model(&model.Product{}).Where("id = ?", id).Count(&visible).Error; err != nil {
			return err
		}
		if visible > 0 {
			return apperr.Forbidden("operation not permitted")
		}
		return gorm.ErrRecordNotFound
	})
	return notFoundAs(err, "product not found")
}

// notFoundAs rewrites a generic NotFound with a caller-facing message.
func notFoundAs(err error, msg string) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Wrap(apperr.KindNotFound, err, msg)
	}
	return err
}
