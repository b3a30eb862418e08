package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// OptionSelection is one chosen product option, e.g. Color=Red.
type OptionSelection struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OptionSelections keeps the customer's choices in the order they were made.
type OptionSelections []OptionSelection

// Value marshals the selections into JSON for Postgres.
func (o OptionSelections) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the slice.
func (o *OptionSelections) Scan(value interface{}) error {
	if value == nil {
		*o = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("option selections: unsupported scan type %T", value)
	}

	var result OptionSelections
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*o = result
	return nil
}

// Clone returns an independent copy.
func (o OptionSelections) Clone() OptionSelections {
	if o == nil {
		return nil
	}
	out := make(OptionSelections, len(o))
	copy(out, o)
	return out
}

// ProductOption describes a configurable product attribute and its choices.
type ProductOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}
