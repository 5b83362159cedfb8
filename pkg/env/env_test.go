package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("ECOM_TEST_VALUE", "  console ")
	if got := Get("ECOM_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("ECOM_TEST_VALUE", "   ")
	if got := Get("ECOM_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("ECOM_TEST_FLAG", "true")
	if !Bool("ECOM_TEST_FLAG", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("ECOM_TEST_FLAG", "nope")
	if !Bool("ECOM_TEST_FLAG", true) {
		t.Fatalf("malformed value should fall back")
	}
	if Bool("ECOM_TEST_UNSET_FLAG", false) {
		t.Fatalf("unset value should fall back")
	}
}
