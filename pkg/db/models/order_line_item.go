package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLineItem snapshots one cart entry at order time so later catalog edits do not
// rewrite history.
type OrderLineItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index:order_line_items_order_id_idx"`
	ProductID     *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	InvoiceNo     string          `gorm:"column:invoice_no;not null"`
	ProductStatus string          `gorm:"column:product_status;not null"`
	Item          string          `gorm:"column:item;not null"`
	Image         string          `gorm:"column:image;not null;default:''"`
	Quantity      int             `gorm:"column:quantity;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
