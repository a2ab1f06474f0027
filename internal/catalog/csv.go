// Package catalog parses catalog CSV exports into products.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"stockroom/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	colName      = "name"
	colCode      = "code"
	colBarcode   = "barcode"
	colPrice     = "price"
	colQuantity  = "quantity"
	colAvailable = "available"
)

var columnAliases = map[string]string{
	"name":         colName,
	"product_name": colName,
	"code":         colCode,
	"product_code": colCode,
	"sku":          colCode,
	"barcode":      colBarcode,
	"ean":          colBarcode,
	"price":        colPrice,
	"unit_price":   colPrice,
	"quantity":     colQuantity,
	"qty":          colQuantity,
	"stock":        colQuantity,
	"available":    colAvailable,
	"is_available": colAvailable,
}

// Parse reads a catalog CSV with a header row. Columns are matched by name,
// so their order does not matter. name and price are required.
func Parse(r io.Reader) ([]*domain.Product, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := nextNonEmptyRecord(reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.NewValidationError("file", "catalog file is empty")
		}
		return nil, domain.NewValidationError("file", err.Error())
	}

	indexes := map[string]int{
		colName: -1, colCode: -1, colBarcode: -1,
		colPrice: -1, colQuantity: -1, colAvailable: -1,
	}
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if canonical, ok := columnAliases[key]; ok && indexes[canonical] < 0 {
			indexes[canonical] = i
		}
	}
	if indexes[colName] < 0 || indexes[colPrice] < 0 {
		return nil, domain.NewValidationError("header", "missing required columns (need name, price)")
	}

	now := time.Now()
	products := []*domain.Product{}
	for {
		record, err := nextNonEmptyRecord(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, domain.NewValidationError("file", err.Error())
		}
		product, err := parseRecord(record, indexes)
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, domain.NewValidationError(fmt.Sprintf("line %d", line), err.Error())
		}
		product.ID = uuid.New()
		product.CreatedAt = now
		product.UpdatedAt = now
		products = append(products, product)
	}

	return products, nil
}

func parseRecord(record []string, indexes map[string]int) (*domain.Product, error) {
	field := func(col string) string {
		idx := indexes[col]
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	name := field(colName)
	if name == "" {
		return nil, errors.New("name is required")
	}

	price, err := decimal.NewFromString(strings.ReplaceAll(field(colPrice), ",", "."))
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", field(colPrice))
	}
	if price.IsNegative() {
		return nil, errors.New("price must not be negative")
	}

	quantity := 0
	if raw := field(colQuantity); raw != "" {
		quantity, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q", raw)
		}
		if quantity < 0 {
			return nil, errors.New("quantity must not be negative")
		}
	}

	available := true
	if raw := field(colAvailable); raw != "" {
		available, err = parseBool(raw)
		if err != nil {
			return nil, err
		}
	}

	return &domain.Product{
		Name:      name,
		Code:      field(colCode),
		Barcode:   field(colBarcode),
		Price:     price,
		Quantity:  quantity,
		Available: available,
	}, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid available flag %q", raw)
	}
}

// nextNonEmptyRecord skips blank rows and rows starting with '#'
func nextNonEmptyRecord(r *csv.Reader) ([]string, error) {
	for {
		record, err := r.Read()
		if err != nil {
			return nil, err
		}
		skip := true
		for i, field := range record {
			trimmed := strings.TrimSpace(field)
			if trimmed == "" {
				continue
			}
			if i == 0 && strings.HasPrefix(trimmed, "#") {
				break
			}
			skip = false
			break
		}
		if !skip {
			return record, nil
		}
	}
}
