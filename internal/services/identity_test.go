package services

import (
	"testing"
)

// TestNormalizeName checks case folding, accent stripping and filtering
func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Basic lowercase",
			input:    "Ana",
			expected: "ana",
		},
		{
			name:     "Accents stripped",
			input:    "João César",
			expected: "joaocesar",
		},
		{
			name:     "Spaces and punctuation removed",
			input:    "Maria-Clara S.",
			expected: "mariaclaras",
		},
		{
			name:     "Digits preserved",
			input:    "Ana 2",
			expected: "ana2",
		},
		{
			name:     "Leading and trailing whitespace",
			input:    "  Bia  ",
			expected: "bia",
		},
		{
			name:     "Tilde and cedilla",
			input:    "Conceição",
			expected: "conceicao",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeName(tt.input)
			if result != tt.expected {
				t.Errorf("Expected: %q, got: %q", tt.expected, result)
			}
		})
	}
}

// TestPersonIdentifier verifies the deterministic id derivation
func TestPersonIdentifier(t *testing.T) {
	age24 := 24

	tests := []struct {
		name     string
		person   string
		platform string
		username string
		age      *int
		expected string
	}{
		{
			name:     "Name, age and platform",
			person:   "Ana",
			platform: "tinder",
			age:      &age24,
			expected: "ana_24_tinder",
		},
		{
			name:     "Age omitted when unknown",
			person:   "Ana",
			platform: "tinder",
			expected: "ana_tinder",
		},
		{
			name:     "Handle-keyed platform uses the handle",
			person:   "Ana Clara",
			platform: "instagram",
			username: "ana.clara_sp",
			age:      &age24,
			expected: "anaclarasp_instagram",
		},
		{
			name:     "Handle platform without handle falls back to name",
			person:   "Ana",
			platform: "instagram",
			age:      &age24,
			expected: "ana_24_instagram",
		},
		{
			name:     "Platform is case folded",
			person:   "Ana",
			platform: "Tinder",
			age:      &age24,
			expected: "ana_24_tinder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PersonIdentifier(tt.person, tt.platform, tt.username, tt.age)
			if result != tt.expected {
				t.Errorf("Expected: %q, got: %q", tt.expected, result)
			}

			// Pure function: repeated calls agree.
			if again := PersonIdentifier(tt.person, tt.platform, tt.username, tt.age); again != result {
				t.Errorf("Identifier not stable: %q vs %q", result, again)
			}
		})
	}
}

// TestIsHandleKeyed verifies platform classification
func TestIsHandleKeyed(t *testing.T) {
	if !IsHandleKeyed("instagram") {
		t.Error("instagram should be handle-keyed")
	}
	if !IsHandleKeyed(" Instagram ") {
		t.Error("platform matching should trim and case fold")
	}
	if IsHandleKeyed("tinder") {
		t.Error("tinder should not be handle-keyed")
	}
}
