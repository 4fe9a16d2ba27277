package dto

import (
	"time"

	"stockledger/internal/model"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type UpdateStockRequest struct {
	ProductID    string  `json:"product_id"    validate:"required,uuid"`
	ChangeAmount int     `json:"change_amount" validate:"required,min=-2147483647,max=2147483647"`
	Notes        *string `json:"notes"         validate:"omitempty,max=1000"`
}

type TransactionFilter struct {
	ProductID string `form:"product_id" validate:"omitempty,uuid"`
	Limit     int    `form:"limit"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type TransactionResponse struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	ActorID      string    `json:"user_id"`
	ChangeAmount int       `json:"change_amount"`
	Notes        *string   `json:"notes"`
	Timestamp    time.Time `json:"timestamp"`
	ProductName  *string   `json:"product_name,omitempty"`
	ProductSKU   *string   `json:"product_sku,omitempty"`
}

func NewTransactionResponse(t *model.StockTransaction) TransactionResponse {
	return TransactionResponse{
		ID:           t.ID.String(),
		ProductID:    t.ProductID.String(),
		ActorID:      t.ActorID.String(),
		ChangeAmount: t.ChangeAmount,
		Notes:        t.Note,
		Timestamp:    t.CreatedAt,
	}
}

func NewTransactionEntryResponse(e model.TransactionEntry) TransactionResponse {
	resp := NewTransactionResponse(&e.StockTransaction)
	resp.ProductName = e.ProductName
	resp.ProductSKU = e.ProductSKU
	return resp
}

type UpdateStockResponse struct {
	Message        string              `json:"message"`
	Transaction    TransactionResponse `json:"transaction"`
	UpdatedProduct ProductResponse     `json:"updated_product"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

type LowStockResponse struct {
	LowStockProducts []ProductResponse `json:"low_stock_products"`
}
