package dto

import (
	"time"

	"stockledger/internal/model"
	"stockledger/internal/service"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductRequest struct {
	Name         string  `json:"name"          validate:"required,max=200"`
	Description  *string `json:"description"   validate:"omitempty,max=2000"`
	SKU          string  `json:"sku"           validate:"required,max=64"`
	ReorderLevel *int    `json:"reorder_level" validate:"omitempty,min=0"`
}

// UpdateProductRequest is a partial update; SKU is immutable.
type UpdateProductRequest struct {
	Name         *string `json:"name"          validate:"omitempty,max=200"`
	Description  *string `json:"description"   validate:"omitempty,max=2000"`
	ReorderLevel *int    `json:"reorder_level" validate:"omitempty,min=0"`
}

func (r UpdateProductRequest) Changes() model.ProductChanges {
	return model.ProductChanges{Name: r.Name, Description: r.Description, ReorderThreshold: r.ReorderLevel}
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	SKU          string    `json:"sku"`
	StockCount   int64     `json:"stock_count"`
	ReorderLevel int       `json:"reorder_level"`
	LowStock     bool      `json:"low_stock"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewProductResponse merges a catalog row with its projection. A nil
// projection reads as an empty ledger.
func NewProductResponse(p *model.Product, proj *service.Projection) ProductResponse {
	resp := ProductResponse{
		ID:           p.ID.String(),
		Name:         p.Name,
		Description:  p.Description,
		SKU:          p.SKU,
		ReorderLevel: p.ReorderThreshold,
		LowStock:     p.ReorderThreshold > 0,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if proj != nil {
		resp.StockCount = proj.CurrentStock
		resp.LowStock = proj.CurrentStock < int64(p.ReorderThreshold)
	}
	return resp
}

type ProductEnvelope struct {
	Message string          `json:"message,omitempty"`
	Product ProductResponse `json:"product"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type QRCodeResponse struct {
	QRCodeData  string          `json:"qr_code_data"`
	QRCodeImage string          `json:"qr_code_image"`
	Product     ProductResponse `json:"product"`
}
