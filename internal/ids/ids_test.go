package ids

import "testing"

func TestUUIDProviderIssuesDistinctValidIDs(t *testing.T) {
	provider := NewUUIDProvider()
	first, err := provider.NewID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := provider.NewID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct ids, got %s twice", first)
	}
	if !Valid(first) || !Valid(second) {
		t.Fatalf("expected generated ids to be valid: %s %s", first, second)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{value: "5b0d5a0e-8f0c-4c1e-9b7e-2f2f3c1d4e5f", expected: true},
		{value: "not-a-uuid", expected: false},
		{value: "", expected: false},
		{value: "urn:uuid:5b0d5a0e-8f0c-4c1e-9b7e-2f2f3c1d4e5f", expected: false},
		{value: "{5b0d5a0e-8f0c-4c1e-9b7e-2f2f3c1d4e5f}", expected: false},
	}
	for _, tt := range tests {
		if got := Valid(tt.value); got != tt.expected {
			t.Fatalf("Valid(%q) = %v, want %v", tt.value, got, tt.expected)
		}
	}
}
