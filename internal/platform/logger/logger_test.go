package logger

import (
	"testing"

	"github.com/google/uuid"
)

func TestSanitizeKVsRedactsContactFields(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"customer_id", "c-1",
		"email", "jane@example.com",
		"phone", "+1-555-0100",
		"external_id", "crm-42",
	})
	if len(out) != 8 {
		t.Fatalf("len=%d", len(out))
	}
	if id, ok := out[1].(string); !ok || id == "c-1" || len(id) != len("hash:")+12 {
		t.Fatalf("customer_id not hashed: %v", out[1])
	}
	if out[3] != "[REDACTED]" || out[5] != "[REDACTED]" {
		t.Fatalf("contact fields not redacted: %v", out)
	}
	hashed, ok := out[7].(string)
	if !ok || len(hashed) != len("hash:")+12 {
		t.Fatalf("external_id not hashed: %v", out[7])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"status", "ok", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected: %v", out)
	}
}

func TestSanitizeKVsHashesCustomerIDsStably(t *testing.T) {
	id := uuid.New()
	first := sanitizeKVs([]interface{}{"customer_id", id})
	second := sanitizeKVs([]interface{}{"customer_id", id.String()})
	if first[1] != second[1] {
		t.Fatalf("same id hashed differently: %v vs %v", first[1], second[1])
	}
	other := sanitizeKVs([]interface{}{"customer_id", uuid.New()})
	if other[1] == first[1] {
		t.Fatalf("distinct ids share a hash: %v", other[1])
	}
}
