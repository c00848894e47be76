package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a shipping address in a user's address book.
type Address struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:addresses_user_id_idx"`
	Address   string    `gorm:"column:address;not null"`
	Mobile    *string   `gorm:"column:mobile"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
