package addresses

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
)

// Service manages a user's address book. A user has at most one default
// address; the first address becomes the default automatically.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Get(ctx context.Context, userID, addressID uuid.UUID) (*AddressDTO, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*AddressDTO, error)
	Update(ctx context.Context, userID, addressID uuid.UUID, input UpdateInput) (*AddressDTO, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*AddressDTO, error)
}

type CreateInput struct {
	FullName  string `json:"full_name" validate:"required,max=100"`
	Street    string `json:"street" validate:"required,max=255"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state" validate:"required,max=100"`
	Zipcode   string `json:"zipcode" validate:"required,max=20"`
	Country   string `json:"country" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required,max=30"`
	IsDefault bool   `json:"is_default"`
}

type UpdateInput struct {
	FullName  *string `json:"full_name" validate:"omitempty,max=100"`
	Street    *string `json:"street" validate:"omitempty,max=255"`
	City      *string `json:"city" validate:"omitempty,max=100"`
	State     *string `json:"state" validate:"omitempty,max=100"`
	Zipcode   *string `json:"zipcode" validate:"omitempty,max=20"`
	Country   *string `json:"country" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	IsDefault *bool   `json:"is_default"`
}

type AddressDTO struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zipcode   string    `json:"zipcode"`
	Country   string    `json:"country"`
	Phone     string    `json:"phone"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewAddressDTO(a *models.Address) AddressDTO {
	return AddressDTO{
		ID:        a.ID,
		FullName:  a.FullName,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		Zipcode:   a.Zipcode,
		Country:   a.Country,
		Phone:     a.Phone,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
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

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewAddressDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, addressID uuid.UUID) (*AddressDTO, error) {
	row, err := s.repo.FindForUser(ctx, userID, addressID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	dto := NewAddressDTO(row)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*AddressDTO, error) {
	address := &models.Address{
		UserID:    userID,
		FullName:  strings.TrimSpace(input.FullName),
		Street:    strings.TrimSpace(input.Street),
		City:      strings.TrimSpace(input.City),
		State:     strings.TrimSpace(input.State),
		Zipcode:   strings.TrimSpace(input.Zipcode),
		Country:   strings.TrimSpace(input.Country),
		Phone:     strings.TrimSpace(input.Phone),
		IsDefault: input.IsDefault,
	}
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		existing, err := txRepo.LockByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock addresses")
		}
		if len(existing) == 0 {
			address.IsDefault = true
		}
		if address.IsDefault {
			address.ID = uuid.New()
			if err := txRepo.ClearDefault(ctx, userID, address.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
		}
		if err := txRepo.Create(ctx, address); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewAddressDTO(address)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID, addressID uuid.UUID, input UpdateInput) (*AddressDTO, error) {
	var updated *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		address, err := lockOwned(ctx, txRepo, userID, addressID)
		if err != nil {
			return err
		}
		applyString(&address.FullName, input.FullName)
		applyString(&address.Street, input.Street)
		applyString(&address.City, input.City)
		applyString(&address.State, input.State)
		applyString(&address.Zipcode, input.Zipcode)
		applyString(&address.Country, input.Country)
		applyString(&address.Phone, input.Phone)
		if err := validateAddress(address); err != nil {
			return err
		}
		if input.IsDefault != nil {
			if *input.IsDefault && !address.IsDefault {
				if err := txRepo.ClearDefault(ctx, userID, address.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
				}
			}
			address.IsDefault = *input.IsDefault
		}
		if err := txRepo.Save(ctx, address); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
		}
		updated = address
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewAddressDTO(updated)
	return &dto, nil
}

// Delete removes the address. When it was the default, the most recently
// created remaining address is promoted.
func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		rows, err := txRepo.LockByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock addresses")
		}
		target, rest := splitAddress(rows, addressID)
		if target == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		if err := txRepo.Delete(ctx, target.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
		}
		if !target.IsDefault || len(rest) == 0 {
			return nil
		}
		sort.Slice(rest, func(i, j int) bool {
			if rest[i].CreatedAt.Equal(rest[j].CreatedAt) {
				return rest[i].ID.String() > rest[j].ID.String()
			}
			return rest[i].CreatedAt.After(rest[j].CreatedAt)
		})
		promoted := rest[0]
		promoted.IsDefault = true
		if err := txRepo.Save(ctx, &promoted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote default address")
		}
		return nil
	})
}

func (s *service) SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*AddressDTO, error) {
	yes := true
	return s.Update(ctx, userID, addressID, UpdateInput{IsDefault: &yes})
}

// lockOwned locks all of the user's addresses and returns the requested one.
func lockOwned(ctx context.Context, repo *Repository, userID, addressID uuid.UUID) (*models.Address, error) {
	rows, err := repo.LockByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock addresses")
	}
	target, _ := splitAddress(rows, addressID)
	if target == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return target, nil
}

func splitAddress(rows []models.Address, id uuid.UUID) (*models.Address, []models.Address) {
	var target *models.Address
	rest := make([]models.Address, 0, len(rows))
	for i := range rows {
		if rows[i].ID == id {
			row := rows[i]
			target = &row
			continue
		}
		rest = append(rest, rows[i])
	}
	return target, rest
}

func applyString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func validateAddress(a *models.Address) error {
	missing := []string{}
	fields := []struct {
		name  string
		value string
	}{
		{"full_name", a.FullName},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zipcode", a.Zipcode},
		{"country", a.Country},
		{"phone", a.Phone},
	}
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "address fields are required").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
}
