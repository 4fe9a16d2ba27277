package service

import (
	"context"

	"stockledger/internal/metrics"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
)

// Projection is the derived stock state of one product. It is never stored.
type Projection struct {
	ProductID        uuid.UUID `json:"product_id"`
	CurrentStock     int64     `json:"current_stock"`
	ReorderThreshold int       `json:"reorder_threshold"`
	LowStock         bool      `json:"low_stock"`
}

// Compute derives a projection from a product and its ledger. Entries for
// other products are ignored, and order does not matter.
func Compute(p model.Product, ledger []model.StockTransaction) Projection {
	var stock int64
	for _, t := range ledger {
		if t.ProductID == p.ID {
			stock += int64(t.ChangeAmount)
		}
	}
	return project(p.ID, stock, p.ReorderThreshold)
}

func project(id uuid.UUID, stock int64, threshold int) Projection {
	return Projection{
		ProductID:        id,
		CurrentStock:     stock,
		ReorderThreshold: threshold,
		LowStock:         stock < int64(threshold),
	}
}

// StockProjection answers stock questions by reading the ledger through the
// caller's executor. It writes nothing.
type StockProjection interface {
	CurrentStock(ctx context.Context, exec repository.Executor, productID uuid.UUID) (int64, error)
	IsLowStock(ctx context.Context, exec repository.Executor, productID uuid.UUID) (bool, error)
	ListLowStock(ctx context.Context, exec repository.Executor) ([]uuid.UUID, error)
	Project(ctx context.Context, exec repository.Executor, productID uuid.UUID) (*Projection, error)
	LowStockLevels(ctx context.Context, exec repository.Executor) ([]Projection, error)
	AllLevels(ctx context.Context, exec repository.Executor) (map[uuid.UUID]Projection, error)
}

type stockProjection struct {
	metrics *metrics.Registry
}

func NewStockProjection(m *metrics.Registry) StockProjection {
	return &stockProjection{metrics: m}
}

func (s *stockProjection) CurrentStock(ctx context.Context, exec repository.Executor, productID uuid.UUID) (int64, error) {
	stock, err := exec.SumChanges(ctx, productID)
	if err != nil {
		return 0, surface(ctx, s.metrics, "projection.current_stock", err)
	}
	return stock, nil
}

func (s *stockProjection) IsLowStock(ctx context.Context, exec repository.Executor, productID uuid.UUID) (bool, error) {
	p, err := s.Project(ctx, exec, productID)
	if err != nil {
		return false, err
	}
	return p.LowStock, nil
}

func (s *stockProjection) ListLowStock(ctx context.Context, exec repository.Executor) ([]uuid.UUID, error) {
	levels, err := s.LowStockLevels(ctx, exec)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(levels))
	for _, l := range levels {
		ids = append(ids, l.ProductID)
	}
	return ids, nil
}

// Project reads the threshold as stored now, then the ledger sum.
func (s *stockProjection) Project(ctx context.Context, exec repository.Executor, productID uuid.UUID) (*Projection, error) {
	p, err := exec.SelectProduct(ctx, productID)
	if err != nil {
		return nil, surface(ctx, s.metrics, "projection.project", err)
	}
	stock, err := exec.SumChanges(ctx, productID)
	if err != nil {
		return nil, surface(ctx, s.metrics, "projection.project", err)
	}
	proj := project(p.ID, stock, p.ReorderThreshold)
	return &proj, nil
}

func (s *stockProjection) LowStockLevels(ctx context.Context, exec repository.Executor) ([]Projection, error) {
	levels, err := exec.SelectLowStock(ctx)
	if err != nil {
		return nil, surface(ctx, s.metrics, "projection.low_stock", err)
	}
	out := make([]Projection, 0, len(levels))
	for _, l := range levels {
		out = append(out, project(l.ProductID, l.CurrentStock, l.ReorderThreshold))
	}
	return out, nil
}

func (s *stockProjection) AllLevels(ctx context.Context, exec repository.Executor) (map[uuid.UUID]Projection, error) {
	levels, err := exec.SelectStockLevels(ctx)
	if err != nil {
		return nil, surface(ctx, s.metrics, "projection.levels", err)
	}
	out := make(map[uuid.UUID]Projection, len(levels))
	for _, l := range levels {
		out[l.ProductID] = project(l.ProductID, l.CurrentStock, l.ReorderThreshold)
	}
	return out, nil
}
