package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
// Admins may move an order between any two statuses.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted,
		OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// ShippingInfo is the customer contact and delivery address captured at completion.
type ShippingInfo struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Normalize trims every field and fills the default country.
func (s *ShippingInfo) Normalize() {
	s.FirstName = strings.TrimSpace(s.FirstName)
	s.LastName = strings.TrimSpace(s.LastName)
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = strings.TrimSpace(s.Phone)
	s.AddressLine1 = strings.TrimSpace(s.AddressLine1)
	s.AddressLine2 = strings.TrimSpace(s.AddressLine2)
	s.City = strings.TrimSpace(s.City)
	s.State = strings.TrimSpace(s.State)
	s.PostalCode = strings.TrimSpace(s.PostalCode)
	s.Country = strings.TrimSpace(s.Country)
	if s.Country == "" {
		s.Country = "US"
	}
}

// Validate returns the first missing or malformed field.
func (s *ShippingInfo) Validate() error {
	required := []struct {
		value string
		label string
	}{
		{s.FirstName, "First name"},
		{s.LastName, "Last name"},
		{s.Email, "Email"},
		{s.Phone, "Phone number"},
		{s.AddressLine1, "Address"},
		{s.City, "City"},
		{s.State, "State/Province"},
		{s.PostalCode, "Postal code"},
	}
	for _, f := range required {
		if f.value == "" {
			return NewDomainError(ErrCodeInvalidShipping, f.label+" is required")
		}
	}
	if !emailPattern.MatchString(s.Email) {
		return NewDomainError(ErrCodeInvalidShipping, "Please enter a valid email")
	}
	return nil
}

// FullName joins first and last name the way the order record stores it.
func (s *ShippingInfo) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Order represents a paid customer order.
type Order struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	CustomerEmail    string          `json:"customerEmail" db:"customer_email"`
	CustomerName     string          `json:"customerName" db:"customer_name"`
	Shipping         ShippingInfo    `json:"shipping"`
	Status           OrderStatus     `json:"status" db:"status"`
	Subtotal         decimal.Decimal `json:"subtotal" db:"subtotal"`
	Total            decimal.Decimal `json:"total" db:"total"`
	PaymentSessionID string          `json:"paymentSessionId" db:"payment_session_id"`
	PaymentRef       string          `json:"paymentRef,omitempty" db:"payment_ref"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderItem represents a line item in an order. Name and price are
// snapshots taken at checkout and never follow later catalogue edits.
type OrderItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderID     uuid.UUID       `json:"orderId" db:"order_id"`
	ProductID   string          `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

// OrderResponse represents an order with its line items.
type OrderResponse struct {
	Order
	Items []OrderItem `json:"items"`
}

// CompleteOrderRequest is the storefront payload sent after the hosted checkout finishes.
type CompleteOrderRequest struct {
	Shipping ShippingInfo `json:"shipping"`
}

// CompleteOrderResult is returned by the fulfilment engine. Replayed is set
// when the session had already been fulfilled and no new effect was applied.
type CompleteOrderResult struct {
	OrderID  uuid.UUID `json:"orderId"`
	Replayed bool      `json:"replayed"`
}

// StatusRequest is the admin payload for changing an order's status.
type StatusRequest struct {
	Status OrderStatus `json:"status"`
}

// AdminStats summarises the back office dashboard.
type AdminStats struct {
	TotalProducts int             `json:"totalProducts"`
	TotalOrders   int             `json:"totalOrders"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	LowStockCount int             `json:"lowStockCount"`
}
