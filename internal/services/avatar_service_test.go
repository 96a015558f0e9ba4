package services

import (
	"testing"
)

// TestSightingCreated covers the create-vs-merge outcome across both
// identity paths. A first sighting that carries a photo inserts the record
// during face attachment, so the later profile-merge upsert reports no
// insert; the sighting still counts as created.
func TestSightingCreated(t *testing.T) {
	tests := []struct {
		name          string
		photo         *PhotoResult
		mergeInserted bool
		expected      bool
	}{
		{
			name:          "First sighting with photo",
			photo:         &PhotoResult{PersonID: "ana_24_tinder", Created: true},
			mergeInserted: false,
			expected:      true,
		},
		{
			name:          "Photo matched an existing record",
			photo:         &PhotoResult{PersonID: "ana_24_tinder", Created: false, IsExistingMatch: true},
			mergeInserted: false,
			expected:      false,
		},
		{
			name:          "First sighting without photo",
			photo:         nil,
			mergeInserted: true,
			expected:      true,
		},
		{
			name:          "Repeat sighting without photo",
			photo:         nil,
			mergeInserted: false,
			expected:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sightingCreated(tt.photo, tt.mergeInserted); got != tt.expected {
				t.Errorf("sightingCreated = %v, want %v", got, tt.expected)
			}
		})
	}
}
