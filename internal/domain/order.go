package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle of an order
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "Draft"     // Client-side only, never persisted
	OrderStatusSaved     OrderStatus = "Saved"     // Persisted, lines editable
	OrderStatusCompleted OrderStatus = "Completed" // Picked, terminal
)

// IsValid checks if the status is a known value
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusSaved, OrderStatusCompleted:
		return true
	default:
		return false
	}
}

// CanEdit checks if an order in this status accepts line edits
func (s OrderStatus) CanEdit() bool {
	return s != OrderStatusCompleted
}

// CanComplete checks if an order in this status can be completed
func (s OrderStatus) CanComplete() bool {
	return s == OrderStatusSaved
}

// OrderLine is one requested entry of an order. A line without a ProductID
// is a free-text custom line.
type OrderLine struct {
	ID          string          `json:"id"`
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	Name        string          `json:"name"`
	ProductCode string          `json:"product_code,omitempty"`
	Barcode     string          `json:"barcode,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Note        string          `json:"note,omitempty"`
	IsCustom    bool            `json:"is_custom"`
}

// Subtotal returns price times quantity
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// PickRecord is the outcome of picking a single line
type PickRecord struct {
	LineID      string `json:"line_id"`
	OriginalQty int    `json:"original_qty"`
	PickedQty   int    `json:"picked_qty"`
	Mismatch    bool   `json:"mismatch"`
}

// NewPickRecord builds a record with the mismatch flag derived from the quantities
func NewPickRecord(lineID string, originalQty, pickedQty int) PickRecord {
	return PickRecord{
		LineID:      lineID,
		OriginalQty: originalQty,
		PickedQty:   pickedQty,
		Mismatch:    pickedQty != originalQty,
	}
}

// Order is the aggregate for a customer's requested lines
type Order struct {
	ID           string          `json:"id"`
	CustomerName string          `json:"customer_name"`
	Lines        []OrderLine     `json:"lines"`
	Status       OrderStatus     `json:"status"`
	Total        decimal.Decimal `json:"total"`
	PickRecords  []PickRecord    `json:"pick_records,omitempty"`
	Date         time.Time       `json:"date"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewDraft returns an empty, unsaved order
func NewDraft() *Order {
	return &Order{
		Lines:  []OrderLine{},
		Status: OrderStatusDraft,
		Total:  decimal.Zero,
	}
}

// ComputeTotal sums price times quantity over all lines
func (o *Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Line returns the line with the given id
func (o *Order) Line(lineID string) (OrderLine, bool) {
	for _, line := range o.Lines {
		if line.ID == lineID {
			return line, true
		}
	}
	return OrderLine{}, false
}

// IsCompleted reports whether the order reached its terminal state
func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}
