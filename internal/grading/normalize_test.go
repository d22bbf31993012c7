package grading

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"b.", "B"},
		{" b ", "B"},
		{"B", "B"},
		{"  c. ", "C"},
		{"a.b.", "AB"},
		{"", ""},
		{"   ", ""},
		{".", ""},
	}
	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsCorrect(t *testing.T) {
	tests := []struct {
		name     string
		selected string
		key      string
		want     bool
	}{
		{"trailing period", "b.", "B", true},
		{"surrounding spaces", " b ", "B", true},
		{"wrong option", "C", "B", false},
		{"both decorated", " a. ", "A.", true},
		{"empty selection vs key", "", "B", false},
		{"empty both", "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsCorrect(tc.selected, tc.key); got != tc.want {
				t.Fatalf("IsCorrect(%q, %q) = %v, want %v", tc.selected, tc.key, got, tc.want)
			}
		})
	}
}
