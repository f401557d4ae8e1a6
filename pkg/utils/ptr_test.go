package utils

import "testing"

func TestPtr(t *testing.T) {
	t.Parallel()

	s := Ptr("pump-01")
	if *s != "pump-01" {
		t.Errorf("*Ptr() = %q, want pump-01", *s)
	}

	n := Ptr(42)
	if *n != 42 {
		t.Errorf("*Ptr() = %d, want 42", *n)
	}

	a, b := Ptr(1), Ptr(1)
	if a == b {
		t.Error("Ptr() returned the same address for distinct calls")
	}
}
