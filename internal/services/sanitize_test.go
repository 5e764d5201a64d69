package services

import (
	"encoding/json"
	"testing"
)

func TestSanitizeJSON_EscapesAllStringLeaves(t *testing.T) {
	raw := []byte(`{"a":"<img src=x>","b":[1,"<i>",{"c":"safe & sound"}],"d":true,"e":null}`)

	sanitized, err := SanitizeJSON(raw)
	if err != nil {
		t.Fatalf("SanitizeJSON failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(sanitized, &decoded); err != nil {
		t.Fatalf("Sanitized output is not valid JSON: %v", err)
	}

	if decoded["a"] != "&lt;img src=x&gt;" {
		t.Errorf("Top-level string not escaped: %q", decoded["a"])
	}
	arr := decoded["b"].([]interface{})
	if arr[1] != "&lt;i&gt;" {
		t.Errorf("Array string not escaped: %q", arr[1])
	}
	inner := arr[2].(map[string]interface{})
	if inner["c"] != "safe &amp; sound" {
		t.Errorf("Nested string not escaped: %q", inner["c"])
	}
	if decoded["d"] != true || decoded["e"] != nil {
		t.Errorf("Non-string leaves must pass through unchanged: %v", decoded)
	}
}

func TestSanitizeJSON_RejectsInvalidJSON(t *testing.T) {
	if _, err := SanitizeJSON([]byte("<html>")); err == nil {
		t.Fatal("Expected error for non-JSON input")
	}
}
