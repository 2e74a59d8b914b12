package identity

import (
	"strings"
	"testing"
)

func TestNewLength(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := New()
		if len(id) != Length {
			t.Fatalf("New() = %q, want length %d", id, Length)
		}
	}
}

func TestNewUsesAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := New()
		for _, c := range id {
			if !strings.ContainsRune(alphabet, c) {
				t.Fatalf("New() = %q contains %q outside the alphabet", id, c)
			}
		}
	}
}

func TestNewIsValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		if id := New(); !Valid(id) {
			t.Fatalf("Valid(New()) = false for %q", id)
		}
	}
}

func TestNewNotConstant(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[New()] = true
	}
	if len(seen) < 2 {
		t.Fatal("New() returned the same identity 50 times")
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"generated", "Xm4PqR7nKd", true},
		{"all digits", "2345678923", true},
		{"lookalikes still parse", "Il0OIl0OIl", true},
		{"empty", "", false},
		{"too short", "abc", false},
		{"too long", "abcdefghjkm", false},
		{"space", "abcde fghj", false},
		{"punctuation", "abcde!ghjk", false},
		{"unicode", "abcdefghjé", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.in); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
