package model

import (
	"time"

	"github.com/google/uuid"
)

// LowStockAlert is emitted when a recorded change leaves a product below its
// reorder threshold.
type LowStockAlert struct {
	ProductID        uuid.UUID `json:"product_id"`
	SKU              string    `json:"sku"`
	Name             string    `json:"name"`
	CurrentStock     int64     `json:"current_stock"`
	ReorderThreshold int       `json:"reorder_threshold"`
	ActorID          uuid.UUID `json:"actor_id"`
	TransactionID    uuid.UUID `json:"transaction_id"`
	RaisedAt         time.Time `json:"raised_at"`
}
