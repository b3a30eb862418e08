package types

import (
	"strings"
)

// PostalAddress is the delivery address embedded in order snapshots.
type PostalAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// IsZero reports whether every address field is blank.
func (a PostalAddress) IsZero() bool {
	return strings.TrimSpace(a.Address) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.State) == "" &&
		strings.TrimSpace(a.PostalCode) == "" &&
		strings.TrimSpace(a.Country) == ""
}

// Lines renders the address the way invoices and emails print it.
func (a PostalAddress) Lines() []string {
	lines := make([]string, 0, 3)
	if v := strings.TrimSpace(a.Address); v != "" {
		lines = append(lines, v)
	}
	cityLine := strings.TrimSpace(strings.Join(nonEmpty(a.City, a.State), ", "))
	if pc := strings.TrimSpace(a.PostalCode); pc != "" {
		cityLine = strings.TrimSpace(cityLine + " " + pc)
	}
	if cityLine != "" {
		lines = append(lines, cityLine)
	}
	if v := strings.TrimSpace(a.Country); v != "" {
		lines = append(lines, v)
	}
	return lines
}

// CustomerInfo is the contact block captured at checkout.
type CustomerInfo struct {
	Email           string        `json:"email"`
	Name            string        `json:"name"`
	Phone           string        `json:"phone"`
	ShippingAddress PostalAddress `json:"shipping_address"`
	Notes           string        `json:"notes,omitempty"`
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
