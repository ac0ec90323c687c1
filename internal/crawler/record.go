package crawler

import (
	"fmt"
	"strings"
)

// Field names a column of the harvested table.
type Field string

// Recognized record fields, in export column order.
const (
	FieldName    Field = "name"
	FieldPhone   Field = "phone"
	FieldAddress Field = "address"
	FieldEmail   Field = "email"
	FieldTaxID   Field = "tax_id"
)

// Fields lists every recognized field in canonical column order.
var Fields = []Field{FieldName, FieldPhone, FieldAddress, FieldEmail, FieldTaxID}

// Record holds the fields extracted from one organization page. Nil pointers
// mean the field was absent on the source page.
type Record struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
	Email   *string `json:"email,omitempty"`
	TaxID   *string `json:"tax_id,omitempty"`
}

// Set stores value under field. Unknown fields are rejected.
func (r *Record) Set(field Field, value string) error {
	slot := r.slot(field)
	if slot == nil {
		return fmt.Errorf("unknown record field %q", field)
	}
	v := value
	*slot = &v
	return nil
}

// Get returns the value stored under field and whether it is present.
func (r Record) Get(field Field) (string, bool) {
	slot := r.slot(field)
	if slot == nil || *slot == nil {
		return "", false
	}
	return **slot, true
}

// Keys returns the present fields in canonical order.
func (r Record) Keys() []Field {
	keys := make([]Field, 0, len(Fields))
	for _, f := range Fields {
		if _, ok := r.Get(f); ok {
			keys = append(keys, f)
		}
	}
	return keys
}

// IsEmpty reports whether no field is present, which is how a failed fetch is
// represented.
func (r Record) IsEmpty() bool {
	return len(r.Keys()) == 0
}

func (r *Record) slot(field Field) **string {
	switch field {
	case FieldName:
		return &r.Name
	case FieldPhone:
		return &r.Phone
	case FieldAddress:
		return &r.Address
	case FieldEmail:
		return &r.Email
	case FieldTaxID:
		return &r.TaxID
	default:
		return nil
	}
}

// NormalizeSpace collapses every run of whitespace to one space and trims the
// ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
