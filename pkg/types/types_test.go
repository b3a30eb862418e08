package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestPostalAddressLines(t *testing.T) {
	addr := PostalAddress{
		Address:    "12 Loom Street",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "India",
	}
	got := addr.Lines()
	want := []string{"12 Loom Street", "Pune, MH 411001", "India"}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, got[i], want[i])
		}
	}
	if !(PostalAddress{}).IsZero() {
		t.Fatal("expected empty address to be zero")
	}
}

func TestOrderLinesCloneIsolatesOptions(t *testing.T) {
	lines := OrderLines{{
		ProductID: uuid.New(),
		Title:     "Macrame Wall Hanging",
		Price:     decimal.NewFromInt(500),
		Quantity:  2,
		Options:   OptionSelections{{Name: "Color", Value: "Ivory"}},
	}}

	snapshot := lines.Clone()
	lines[0].Quantity = 9
	lines[0].Options[0].Value = "Rust"

	if snapshot[0].Quantity != 2 {
		t.Fatalf("expected snapshot quantity 2, got %d", snapshot[0].Quantity)
	}
	if snapshot[0].Options[0].Value != "Ivory" {
		t.Fatalf("expected snapshot option Ivory, got %s", snapshot[0].Options[0].Value)
	}
	if !snapshot[0].LineTotal().Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected line total %s", snapshot[0].LineTotal())
	}
}

func TestOptionSelectionsScan(t *testing.T) {
	var got OptionSelections
	if err := got.Scan([]byte(`[{"name":"Size","value":"M"},{"name":"Color","value":"Red"}]`)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Size" || got[1].Value != "Red" {
		t.Fatalf("unexpected selections %+v", got)
	}
	if err := got.Scan(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
