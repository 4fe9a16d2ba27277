package service

import (
	"context"
	"strings"

	"stockledger/internal/apperr"
	"stockledger/internal/metrics"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
)

// NewProduct is the caller-supplied part of a product. Stock is not part of
// it: a product starts with an empty ledger.
type NewProduct struct {
	Name             string
	SKU              string
	Description      *string
	ReorderThreshold *int // nil means the default
}

const DefaultReorderThreshold = 10

// CatalogService manages products' descriptive fields.
type CatalogService interface {
	Create(ctx context.Context, exec repository.Executor, in NewProduct) (*model.Product, error)
	Read(ctx context.Context, exec repository.Executor, id uuid.UUID) (*model.Product, error)
	Update(ctx context.Context, exec repository.Executor, id uuid.UUID, changes model.ProductChanges) (*model.Product, error)
	Delete(ctx context.Context, exec repository.Executor, id uuid.UUID) error
	List(ctx context.Context, exec repository.Executor) ([]model.Product, error)
}

type catalogService struct {
	metrics *metrics.Registry
}

func NewCatalogService(m *metrics.Registry) CatalogService {
	return &catalogService{metrics: m}
}

func (s *catalogService) Create(ctx context.Context, exec repository.Executor, in NewProduct) (*model.Product, error) {
	p := &model.Product{
		Name:             strings.TrimSpace(in.Name),
		SKU:              strings.TrimSpace(in.SKU),
		Description:      in.Description,
		ReorderThreshold: DefaultReorderThreshold,
	}
	if in.ReorderThreshold != nil {
		p.ReorderThreshold = *in.ReorderThreshold
	}
	if err := validateProduct(p.Name, p.SKU, p.ReorderThreshold); err != nil {
		return nil, surface(ctx, s.metrics, "catalog.create", err)
	}
	if err := exec.InsertProduct(ctx, p); err != nil {
		return nil, surface(ctx, s.metrics, "catalog.create", err)
	}
	return p, nil
}

func (s *catalogService) Read(ctx context.Context, exec repository.Executor, id uuid.UUID) (*model.Product, error) {
	p, err := exec.SelectProduct(ctx, id)
	if err != nil {
		return nil, surface(ctx, s.metrics, "catalog.read", err)
	}
	return p, nil
}

// Update changes only the supplied fields. An empty change set is a read.
func (s *catalogService) Update(ctx context.Context, exec repository.Executor, id uuid.UUID, changes model.ProductChanges) (*model.Product, error) {
	if changes.Name != nil {
		name := strings.TrimSpace(*changes.Name)
		if name == "" {
			return nil, surface(ctx, s.metrics, "catalog.update", apperr.InvalidArgument("name must not be empty"))
		}
		changes.Name = &name
	}
	if changes.ReorderThreshold != nil && *changes.ReorderThreshold < 0 {
		return nil, surface(ctx, s.metrics, "catalog.update", apperr.InvalidArgument("reorder threshold must be >= 0"))
	}

	p, err := exec.UpdateProduct(ctx, id, changes)
	if err != nil {
		return nil, surface(ctx, s.metrics, "catalog.update", err)
	}
	return p, nil
}

// Delete removes the product. Its ledger entries stay behind as history.
func (s *catalogService) Delete(ctx context.Context, exec repository.Executor, id uuid.UUID) error {
	return surface(ctx, s.metrics, "catalog.delete", exec.DeleteProduct(ctx, id))
}

func (s *catalogService) List(ctx context.Context, exec repository.Executor) ([]model.Product, error) {
	products, err := exec.ListProducts(ctx)
	if err != nil {
		return nil, surface(ctx, s.metrics, "catalog.list", err)
	}
	return products, nil
}

func validateProduct(name, sku string, threshold int) error {
	switch {
	case name == "":
		return apperr.InvalidArgument("name must not be empty")
	case sku == "":
		return apperr.InvalidArgument("sku must not be empty")
	case !model.ValidSKU(sku):
		return apperr.InvalidArgument("sku may contain only letters, digits, '-' and '_'")
	case threshold < 0:
		return apperr.InvalidArgument("reorder threshold must be >= 0")
	}
	return nil
}
