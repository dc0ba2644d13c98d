package domain

import (
	"encoding/json"
	"testing"
)

func TestOptionalDistinguishesAbsentNullAndValue(t *testing.T) {
	var body struct {
		A Optional[string] `json:"a"`
		B Optional[string] `json:"b"`
		C Optional[string] `json:"c"`
		D Optional[bool]   `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"b":null,"c":"","d":true}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.A.Set {
		t.Fatalf("expected a to be absent")
	}
	if !body.B.Set || !body.B.Null {
		t.Fatalf("expected b to be explicit null, got %+v", body.B)
	}
	if !body.C.Set || body.C.Null || body.C.Value != "" {
		t.Fatalf("expected c to be empty string, got %+v", body.C)
	}
	if !body.D.Or(false) {
		t.Fatalf("expected d to be true")
	}
	if got := body.B.Or("fallback"); got != "fallback" {
		t.Fatalf("null Or = %q, want fallback", got)
	}
}
