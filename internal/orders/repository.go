package orders

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists orders, their line items and payment state.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided gorm connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// PublicIDExists reports whether an order already uses the public id.
func (r *Repository) PublicIDExists(ctx context.Context, publicID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("public_id = ?", publicID).Count(&count).Error
	return count > 0, err
}

// Create inserts the order row alone; line items are written with CreateLineItems.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

// CreateLineItems inserts the order's line items in one statement.
func (r *Repository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *Repository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("item ASC") }).
		Preload("Coupons")
}

// FindByPublicID loads one of the user's orders with line items and coupons.
func (r *Repository) FindByPublicID(ctx context.Context, userID uuid.UUID, publicID string) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(ctx).First(&order, "public_id = ? AND user_id = ?", publicID, userID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByPublicIDAnyUser loads an order by public id regardless of owner. Used by the
// payment webhook, which has no user context.
func (r *Repository) FindByPublicIDAnyUser(ctx context.Context, publicID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "public_id = ?", publicID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByID loads one of the user's orders by primary key.
func (r *Repository) FindByID(ctx context.Context, userID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(ctx).First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListForUser returns the user's orders newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.withDetails(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// LockByPublicID loads the user's order and holds a row lock until the transaction
// ends. Must be called on a repository bound to a transaction.
func (r *Repository) LockByPublicID(ctx context.Context, userID uuid.UUID, publicID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "public_id = ? AND user_id = ?", publicID, userID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateAmounts rewrites the price and saved columns. Any recorded Stripe session was
// priced at the old amount, so it is detached and the next checkout opens a new one.
func (r *Repository) UpdateAmounts(ctx context.Context, orderID uuid.UUID, price, saved decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"price": price, "saved": saved, "stripe_session_id": nil}).Error
}

// SetStripeSession records the checkout session created for the order.
func (r *Repository) SetStripeSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("stripe_session_id", sessionID).Error
}

// MarkPaid flips paid to true only while it is still false. The returned row count is
// 1 for the call that performed the transition and 0 for every later call.
func (r *Repository) MarkPaid(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND paid = ?", orderID, false).
		Update("paid", true)
	return res.RowsAffected, res.Error
}
