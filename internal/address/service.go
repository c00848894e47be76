package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*AddressDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) error
}

// CreateInput is a new address book entry.
type CreateInput struct {
	Address string
	Mobile  string
}

type AddressDTO struct {
	ID        uuid.UUID `json:"id"`
	Address   string    `json:"address"`
	Mobile    *string   `json:"mobile,omitempty"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

type service struct {
	repo *Repository
	tx   txRunner
}

func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Create adds an address. The user's first address becomes the default.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*AddressDTO, error) {
	line := strings.TrimSpace(input.Address)
	if line == "" {
		return nil, errors.New(errors.CodeValidation, "address is required").
			WithDetails(map[string]string{"address": "is required"})
	}
	var mobile *string
	if m := strings.TrimSpace(input.Mobile); m != "" {
		mobile = &m
	}

	var created models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountForUser(ctx, userID)
		if err != nil {
			return errors.Wrap(errors.CodeDependency, err, "count addresses")
		}
		created = models.Address{
			UserID:    userID,
			Address:   line,
			Mobile:    mobile,
			IsDefault: count == 0,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.Create(ctx, &created); err != nil {
			return errors.Wrap(errors.CodeDependency, err, "create address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(created)
	return &dto, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

// SetDefault moves the default flag to addressID. An address the user does not own
// leaves the previous default in place.
func (s *service) SetDefault(ctx context.Context, userID, addressID uuid.UUID) error {
	if addressID == uuid.Nil {
		return errors.New(errors.CodeValidation, "address id is required").
			WithDetails(map[string]string{"id": "is required"})
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ClearDefault(ctx, userID); err != nil {
			return errors.Wrap(errors.CodeDependency, err, "clear default address")
		}
		rows, err := repo.MarkDefault(ctx, userID, addressID)
		if err != nil {
			return errors.Wrap(errors.CodeDependency, err, "set default address")
		}
		if rows == 0 {
			return errors.New(errors.CodeNotFound, "address not found")
		}
		return nil
	})
}

func toDTO(row models.Address) AddressDTO {
	return AddressDTO{
		ID:        row.ID,
		Address:   row.Address,
		Mobile:    row.Mobile,
		IsDefault: row.IsDefault,
		CreatedAt: row.CreatedAt,
	}
}
