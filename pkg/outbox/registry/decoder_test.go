package registry

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventContactSubmitted, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"name":"Meera"}`)
	output, err := reg.Decode(enums.EventContactSubmitted, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["name"] != "Meera" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventContactSubmitted, 2, input); err == nil {
		t.Fatal("expected error for unregistered version")
	}
}

func TestDefaultDecoderRegistryOrderPlaced(t *testing.T) {
	reg := NewDefaultDecoderRegistry()
	out, err := reg.Decode(enums.EventOrderPlaced, 1, json.RawMessage(`{"order_number":"#K&K1001","total":"1420"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	evt, ok := out.(*payloads.OrderPlacedEvent)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if evt.OrderNumber != "#K&K1001" || evt.Total.String() != "1420" {
		t.Fatalf("unexpected payload %+v", evt)
	}
}
