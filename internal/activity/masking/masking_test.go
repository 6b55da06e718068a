package masking

import (
	"reflect"
	"testing"
)

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret(""); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
	if got := MaskSecret("abc"); got != "****" {
		t.Fatalf("expected full mask for short values, got %q", got)
	}
	if got := MaskSecret("super-secret-value"); got != "****alue" {
		t.Fatalf("expected suffix to survive, got %q", got)
	}
}

func TestMaskDetailsSensitiveKeys(t *testing.T) {
	masked := MaskDetails(map[string]any{
		"password":      "hunter2-hunter2",
		"client_secret": "cs-1234567890",
		"email":         "alice@example.com",
	})

	if masked["password"] != "****ter2" {
		t.Fatalf("password not masked: %v", masked["password"])
	}
	if masked["client_secret"] != "****7890" {
		t.Fatalf("client_secret not masked: %v", masked["client_secret"])
	}
	if masked["email"] != "alice@example.com" {
		t.Fatalf("non-sensitive value changed: %v", masked["email"])
	}
}

func TestMaskDetailsNonStringSecret(t *testing.T) {
	masked := MaskDetails(map[string]any{"code": 123456})
	if masked["code"] != "****" {
		t.Fatalf("expected opaque mask for non-string secret, got %v", masked["code"])
	}
}

func TestMaskDetailsWalksNestedStructures(t *testing.T) {
	masked := MaskDetails(map[string]any{
		"request": map[string]any{
			"authorization": "Bearer abcdef123456",
			"path":          "/orgs",
		},
		"attempts": []any{
			map[string]any{"refresh_token": "rt-998877665544"},
		},
	})

	nested := masked["request"].(map[string]any)
	if nested["authorization"] != "****3456" {
		t.Fatalf("nested secret not masked: %v", nested["authorization"])
	}
	if nested["path"] != "/orgs" {
		t.Fatalf("nested value changed: %v", nested["path"])
	}

	list := masked["attempts"].([]any)
	item := list[0].(map[string]any)
	if item["refresh_token"] != "****5544" {
		t.Fatalf("secret in slice not masked: %v", item["refresh_token"])
	}
}

func TestMaskDetailsEmptyInput(t *testing.T) {
	if got := MaskDetails(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := MaskDetails(map[string]any{" ": "x"}); got != nil {
		t.Fatalf("expected nil after dropping blank keys, got %v", got)
	}
}

func TestMaskDetailsDoesNotMutateInput(t *testing.T) {
	input := map[string]any{"password": "original-password"}
	_ = MaskDetails(input)
	if !reflect.DeepEqual(input, map[string]any{"password": "original-password"}) {
		t.Fatal("input map was mutated")
	}
}
