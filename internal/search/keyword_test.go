package search

import "testing"

func TestKeyword_SetGetClear(t *testing.T) {
	var k Keyword

	if got := k.Get(); got != "" {
		t.Errorf("zero value Get() = %q, want empty", got)
	}

	k.Set("  phân bón  ")
	if got := k.Get(); got != "phân bón" {
		t.Errorf("Get() = %q, want %q", got, "phân bón")
	}

	k.Clear()
	if got := k.Get(); got != "" {
		t.Errorf("Get() after Clear = %q, want empty", got)
	}
}

func TestMatches(t *testing.T) {
	if !Matches("", "anything") {
		t.Error("empty keyword should match")
	}
	if !Matches("CÀ", "Hạt giống cà chua") {
		t.Error("match should be case-insensitive")
	}
	if !Matches("hữu cơ", "Phân bón", "Phân bón hữu cơ vi sinh") {
		t.Error("keyword in the second field should match")
	}
	if Matches("xoài", "Hạt giống cà chua", "") {
		t.Error("unrelated keyword should not match")
	}
}
