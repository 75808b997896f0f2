package roomcode

import (
	"testing"

	"github.com/avalonserve/avalond/internal/randutil"
)

func TestGenerate(t *testing.T) {
	code := Generate()

	if len(code) != Length {
		t.Errorf("expected %d characters, got %d", Length, len(code))
	}
	if err := Validate(code); err != nil {
		t.Errorf("generated code failed validation: %v", err)
	}
}

func TestGenerateUnique(t *testing.T) {
	codes := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		code := Generate()
		if codes[code] {
			t.Fatalf("duplicate code generated after %d draws: %s", i, code)
		}
		codes[code] = true
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := NewGenerator(randutil.New(42)).Generate()
	b := NewGenerator(randutil.New(42)).Generate()

	if a != b {
		t.Errorf("same seed produced different codes: %s vs %s", a, b)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc102", "ABC102"},
		{"ABC1O2", "ABC102"},
		{"abciz9", "ABC1Z9"},
		{"  qwerty ", "QWERTY"},
		{"hellou", "HE110V"},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("ABC102"); err != nil {
		t.Errorf("valid code rejected: %v", err)
	}
	if err := Validate("ABC1"); err == nil {
		t.Error("short code accepted")
	}
	if err := Validate("ABC1O2"); err == nil {
		t.Error("code with omitted letter accepted")
	}
	if err := Validate("abc102"); err == nil {
		t.Error("lowercase code accepted without normalization")
	}
}
