package domain

import "github.com/shopspring/decimal"

// MenuItem is a sellable catalog item as seen by the order core.
// Rate, group and quantity limits are owned by the catalog, never by callers.
type MenuItem struct {
	Code        string
	Name        string
	ItemGroup   string
	Rate        decimal.Decimal
	HasVariants bool
	VariantOf   string
	Attributes  []VariantAttribute
	MinQty      int
	MaxQty      int
	Disabled    bool
}

type VariantAttribute struct {
	Attribute string
	FieldName string
	Value     string
}

// IsTemplate reports whether the item must be resolved to a variant before ordering.
func (m *MenuItem) IsTemplate() bool {
	return m.HasVariants
}

// CheckQty enforces qty > 0 and the configured limits (0 means unlimited).
func (m *MenuItem) CheckQty(qty int) error {
	if qty <= 0 {
		return NewValidationError(EntityMenu, m.Code, "quantity must be greater than 0, got %d", qty)
	}
	if m.MinQty > 0 && qty < m.MinQty {
		return NewValidationError(EntityMenu, m.Code, "quantity %d is below minimum %d", qty, m.MinQty)
	}
	if m.MaxQty > 0 && qty > m.MaxQty {
		return NewValidationError(EntityMenu, m.Code, "quantity %d exceeds maximum %d", qty, m.MaxQty)
	}
	return nil
}

// MatchesAttributes reports whether every requested attribute is present on the
// variant with the same value. Keys match either the attribute or its field name.
func (m *MenuItem) MatchesAttributes(attrs map[string]string) bool {
	for key, want := range attrs {
		found := false
		for _, va := range m.Attributes {
			if (va.Attribute == key || (va.FieldName != "" && va.FieldName == key)) && va.Value == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
