// Package picking reconciles an order's requested lines against picked
// quantities. It holds no state: callers own the Session value and feed it
// back on every pick.
package picking

import (
	"fmt"
	"strings"

	"stockroom/internal/domain"
)

// Line is a requested order line still waiting to be picked
type Line struct {
	LineID      string `json:"line_id" validate:"notblank"`
	Name        string `json:"name"`
	ProductCode string `json:"product_code,omitempty"`
	Barcode     string `json:"barcode,omitempty"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
}

// Pick is a caller-supplied picked quantity for one line
type Pick struct {
	LineID    string `json:"line_id" validate:"required"`
	PickedQty int    `json:"picked_qty" validate:"gte=0"`
}

// Reconcile applies pick to lines. It returns the lines still to pick and the
// record of this pick. Lines with nothing left are dropped; over-picks are
// recorded, never rejected. The input slice is not modified.
func Reconcile(lines []Line, pick Pick) ([]Line, domain.PickRecord, error) {
	if pick.PickedQty < 0 {
		return lines, domain.PickRecord{}, domain.NewValidationError("picked_qty", "must be zero or greater")
	}

	idx := indexOf(lines, pick.LineID)
	if idx < 0 {
		return lines, domain.PickRecord{}, &domain.UnknownLineError{LineID: pick.LineID}
	}

	requested := lines[idx]
	record := domain.NewPickRecord(requested.LineID, requested.Quantity, pick.PickedQty)

	remaining := make([]Line, 0, len(lines))
	remaining = append(remaining, lines[:idx]...)
	if left := requested.Quantity - pick.PickedQty; left > 0 {
		requested.Quantity = left
		remaining = append(remaining, requested)
	}
	remaining = append(remaining, lines[idx+1:]...)

	return remaining, record, nil
}

// CheckLines reports the first line that cannot take part in a reconcile:
// a blank id, a quantity below one, or an id used twice
func CheckLines(lines []Line) error {
	seen := make(map[string]bool, len(lines))
	for i, l := range lines {
		field := func(name string) string { return fmt.Sprintf("remaining[%d].%s", i, name) }

		if strings.TrimSpace(l.LineID) == "" {
			return domain.NewValidationError(field("line_id"), "line id is required")
		}
		if l.Quantity <= 0 {
			return domain.NewValidationError(field("quantity"), "quantity must be greater than 0")
		}
		if seen[l.LineID] {
			return domain.NewValidationError(field("line_id"), "duplicate line id")
		}
		seen[l.LineID] = true
	}
	return nil
}

// LinesFromOrder maps an order's lines to reconciler lines, preserving order
func LinesFromOrder(order *domain.Order) []Line {
	lines := make([]Line, 0, len(order.Lines))
	for _, l := range order.Lines {
		line := Line{
			LineID:   l.ID,
			Name:     l.Name,
			Quantity: l.Quantity,
		}
		// Custom lines have no catalog identity to scan against
		if !l.IsCustom {
			line.ProductCode = l.ProductCode
			line.Barcode = l.Barcode
		}
		lines = append(lines, line)
	}
	return lines
}

// MatchLine finds the line a scanned code refers to. Barcodes win over
// product codes; the comparison is exact and case-insensitive.
func MatchLine(lines []Line, scan string) (Line, bool) {
	scan = strings.TrimSpace(scan)
	if scan == "" {
		return Line{}, false
	}
	for _, l := range lines {
		if l.Barcode != "" && strings.EqualFold(l.Barcode, scan) {
			return l, true
		}
	}
	for _, l := range lines {
		if l.ProductCode != "" && strings.EqualFold(l.ProductCode, scan) {
			return l, true
		}
	}
	return Line{}, false
}

func indexOf(lines []Line, lineID string) int {
	for i, l := range lines {
		if l.LineID == lineID {
			return i
		}
	}
	return -1
}
