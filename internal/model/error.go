package model

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON            = "INVALID_JSON"
	ErrCodeMissingField           = "MISSING_FIELD"
	ErrCodeEmptyCart              = "EMPTY_CART"
	ErrCodeProductNotFound        = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidQuantity        = "INVALID_QUANTITY"
	ErrCodeInsufficientStock      = "INSUFFICIENT_STOCK"
	ErrCodeGatewayUnavailable     = "GATEWAY_UNAVAILABLE"
	ErrCodeInvalidSession         = "INVALID_SESSION"
	ErrCodePaymentIncomplete      = "PAYMENT_INCOMPLETE"
	ErrCodeCompletionInProgress   = "COMPLETION_IN_PROGRESS"
	ErrCodeStockConflict          = "STOCK_CONFLICT"
	ErrCodeInvalidShipping        = "INVALID_SHIPPING"
	ErrCodeOrderNotFound          = "ORDER_NOT_FOUND"
	ErrCodeInvalidStatus          = "INVALID_STATUS"
	ErrCodeInvalidInventoryChange = "INVALID_INVENTORY_CHANGE"
	ErrCodeInvalidProduct         = "INVALID_PRODUCT"
	ErrCodeProductExists          = "PRODUCT_EXISTS"
	ErrCodePersistenceFailure     = "PERSISTENCE_FAILURE"
	ErrCodeUnauthorised           = "UNAUTHORIZED"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeRateLimited            = "RATE_LIMITED"
	ErrCodeInternalError          = "INTERNAL_ERROR"
)

// DomainError is a business rule violation that callers can act on.
// Two domain errors match under errors.Is when their codes are equal, so
// sentinels below can be compared against errors built with extra context.
type DomainError struct {
	Code        string
	Message     string
	ProductID   string
	ProductName string
	Available   int
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewProductNotFoundError names the product that could not be sold.
func NewProductNotFoundError(productID string) *DomainError {
	return &DomainError{
		Code:      ErrCodeProductNotFound,
		Message:   fmt.Sprintf("Product %s not found", productID),
		ProductID: productID,
	}
}

// NewInsufficientStockError reports how many units of a product remain.
func NewInsufficientStockError(productID, productName string, available int) *DomainError {
	return &DomainError{
		Code:        ErrCodeInsufficientStock,
		Message:     fmt.Sprintf("Insufficient stock for %s. Only %d available.", productName, available),
		ProductID:   productID,
		ProductName: productName,
		Available:   available,
	}
}

// NewStockConflictError reports a sale that lost the race for the remaining units.
func NewStockConflictError(productID string, requested, available int) *DomainError {
	return &DomainError{
		Code:      ErrCodeStockConflict,
		Message:   fmt.Sprintf("Stock for product %s changed during fulfilment: requested %d, %d available", productID, requested, available),
		ProductID: productID,
		Available: available,
	}
}

// Common domain errors
var (
	ErrEmptyCart              = NewDomainError(ErrCodeEmptyCart, "Cart is empty")
	ErrProductNotFound        = NewDomainError(ErrCodeProductNotFound, "One or more products not found")
	ErrInvalidQuantity        = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInsufficientStock      = NewDomainError(ErrCodeInsufficientStock, "Insufficient stock")
	ErrGatewayUnavailable     = NewDomainError(ErrCodeGatewayUnavailable, "Payment provider is unavailable, please try again")
	ErrInvalidSession         = NewDomainError(ErrCodeInvalidSession, "Invalid session")
	ErrPaymentIncomplete      = NewDomainError(ErrCodePaymentIncomplete, "Payment has not been completed for this session")
	ErrCompletionInProgress   = NewDomainError(ErrCodeCompletionInProgress, "Order completion for this session is already in progress")
	ErrStockConflict          = NewDomainError(ErrCodeStockConflict, "Stock changed during fulfilment")
	ErrInvalidShipping        = NewDomainError(ErrCodeInvalidShipping, "Shipping information is incomplete")
	ErrOrderNotFound          = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrInvalidStatus          = NewDomainError(ErrCodeInvalidStatus, "Order status must be one of pending, processing, completed, cancelled, refunded")
	ErrInvalidInventoryChange = NewDomainError(ErrCodeInvalidInventoryChange, "Invalid inventory change")
	ErrInvalidProduct         = NewDomainError(ErrCodeInvalidProduct, "Invalid product")
	ErrProductExists          = NewDomainError(ErrCodeProductExists, "Product already exists")
	ErrPersistenceFailure     = NewDomainError(ErrCodePersistenceFailure, "Failed to save order, please contact support")
)

// CodeOf returns the domain code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}
