package repositories

import "fmt"

// StockRejectionReason explains why a stock line could not be fulfilled.
type StockRejectionReason string

const (
	// StockRejectionNotFound indicates the product document is missing.
	StockRejectionNotFound StockRejectionReason = "not_found"
	// StockRejectionInactive indicates the product is no longer purchasable.
	StockRejectionInactive StockRejectionReason = "inactive"
	// StockRejectionInsufficient indicates the requested quantity exceeds availability.
	StockRejectionInsufficient StockRejectionReason = "insufficient"
)

// StockRejection reports one line that blocked an all-or-nothing decrement.
type StockRejection struct {
	ProductID string               `json:"productId"`
	Requested int                  `json:"requested"`
	Available int                  `json:"available"`
	Reason    StockRejectionReason `json:"reason"`
}

// StockError wraps stock mutation failures with the rejected lines attached.
type StockError struct {
	Op       string
	Message  string
	Rejected []StockRejection
	Err      error
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StockError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStockError constructs a typed stock error carrying the rejected lines.
func NewStockError(message string, rejected []StockRejection, err error) *StockError {
	if message == "" {
		message = "stock mutation rejected"
	}
	return &StockError{
		Message:  message,
		Rejected: rejected,
		Err:      err,
	}
}
