package model

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry. Stock is never a column: it is derived from
// stock_transactions by the product_stock view.
type Product struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name             string    `gorm:"not null"`
	Description      *string
	SKU              string `gorm:"column:sku;uniqueIndex;not null"`
	ReorderThreshold int    `gorm:"not null"` // no gorm default: a zero threshold must be written as 0
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Product) TableName() string { return "products" }

var skuPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidSKU mirrors the products_sku_format check constraint.
func ValidSKU(sku string) bool { return skuPattern.MatchString(sku) }

// ProductChanges carries a partial update: nil means "leave as is".
type ProductChanges struct {
	Name             *string
	Description      *string
	ReorderThreshold *int
}

// Empty reports whether no field was supplied.
func (c ProductChanges) Empty() bool {
	return c.Name == nil && c.Description == nil && c.ReorderThreshold == nil
}

// StockLevel is one row of the product_stock view.
type StockLevel struct {
	ProductID        uuid.UUID `gorm:"type:uuid"`
	ReorderThreshold int
	CurrentStock     int64 // sum of int4 amounts, can exceed int4
}

func (StockLevel) TableName() string { return "product_stock" }
