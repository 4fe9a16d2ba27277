package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// StockTransaction is one immutable ledger fact: a signed change to a
// product's stock, attributed to the actor who caused it.
type StockTransaction struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Seq          int64     `gorm:"autoIncrement;->"` // store-assigned insertion order
	ProductID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ActorID      uuid.UUID `gorm:"type:uuid;not null"`
	ChangeAmount int       `gorm:"not null"` // positive = inbound, negative = outbound
	Note         *string
	CreatedAt    time.Time `gorm:"->"`
}

// TableName overrides GORM's default pluralization.
func (StockTransaction) TableName() string { return "stock_transactions" }

// MaxChangeAmount bounds a single change to the integer column it is stored in.
const MaxChangeAmount = math.MaxInt32

// ChangeAmountInRange reports whether amount fits the ledger column.
func ChangeAmountInRange(amount int) bool {
	return amount >= -MaxChangeAmount && amount <= MaxChangeAmount
}

// TransactionFilter narrows a ledger history read.
type TransactionFilter struct {
	ProductID *uuid.UUID
	Limit     int
}

// TransactionEntry is a ledger row joined with the product it references.
// ProductName and ProductSKU are nil when the product has since been deleted.
type TransactionEntry struct {
	StockTransaction
	ProductName *string
	ProductSKU  *string `gorm:"column:product_sku"`
}
