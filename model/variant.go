package model

import (
	"database/sql/driver"
	"fmt"
)

// Variant is the A/B template choice of a membership
type Variant string

const (
	// VariantA ...
	VariantA Variant = "A"

	// VariantB ...
	VariantB Variant = "B"
)

// NullVariant ...
type NullVariant struct {
	Valid   bool
	Variant Variant
}

// NewNullVariant ...
func NewNullVariant(v Variant) NullVariant {
	return NullVariant{Valid: true, Variant: v}
}

// Scan implements sql.Scanner
func (n *NullVariant) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*n = NullVariant{}
	case []byte:
		*n = NewNullVariant(Variant(v))
	case string:
		*n = NewNullVariant(Variant(v))
	default:
		return fmt.Errorf("model: cannot scan %T into NullVariant", value)
	}
	return nil
}

// Value implements driver.Valuer
func (n NullVariant) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return string(n.Variant), nil
}
