package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an item in the catalogue.
// Stock is read-only here: it only changes through the inventory repository.
type Product struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description,omitempty" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	Active      bool            `json:"active" db:"active"`
	Category    string          `json:"category,omitempty" db:"category"`
	ImageURL    string          `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// ProductRequest is the admin payload for creating or replacing a product record.
// ID is optional on create; a UUID is generated when it is empty.
type ProductRequest struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	ImageURL     string          `json:"imageUrl"`
	Active       *bool           `json:"active,omitempty"`
	InitialStock int             `json:"initialStock,omitempty"`
}

// PriceScale is the number of decimal places prices are stored with.
const PriceScale = 2

// maxPrice is the first value that no longer fits NUMERIC(12,2).
var maxPrice = decimal.New(1, 10)

// Validate checks the fields every stored product must satisfy.
func (r *ProductRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewDomainError(ErrCodeInvalidProduct, "Product name is required")
	}
	if r.Price.IsNegative() {
		return NewDomainError(ErrCodeInvalidProduct, "Product price cannot be negative")
	}
	if !r.Price.Equal(r.Price.Truncate(PriceScale)) {
		return NewDomainError(ErrCodeInvalidProduct, "Product price cannot have more than 2 decimal places")
	}
	if r.Price.GreaterThanOrEqual(maxPrice) {
		return NewDomainError(ErrCodeInvalidProduct, "Product price must be below "+maxPrice.String())
	}
	if r.InitialStock < 0 {
		return NewDomainError(ErrCodeInvalidProduct, "Initial stock cannot be negative")
	}
	if r.InitialStock > MaxQuantity {
		return NewDomainError(ErrCodeInvalidProduct, "Initial stock exceeds the stock range")
	}
	return nil
}

// Outcomes of a product delete request.
const (
	DeleteOutcomeDeleted     = "deleted"
	DeleteOutcomeDeactivated = "deactivated"
)

// DeleteProductResult reports what a delete request did. Products that were
// ever sold or ledgered are hidden instead of removed so order items and
// ledger entries keep their reference.
type DeleteProductResult struct {
	ProductID string `json:"productId"`
	Outcome   string `json:"outcome"`
}

// ActiveRequest toggles product visibility in the storefront.
type ActiveRequest struct {
	Active bool `json:"active"`
}
