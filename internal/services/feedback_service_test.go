package services

import (
	"testing"

	"wingmate/internal/models"
)

// TestUpdateLedgerCreatesEntry checks that an unseen tag is created with
// the observed counts
func TestUpdateLedgerCreatesEntry(t *testing.T) {
	out := updateLedger(nil, "geral_curioso", "Oi, tudo bem?", false)

	if len(out) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(out))
	}
	entry := out[0]
	if entry.Strategy != "geral_curioso" {
		t.Errorf("Strategy = %q, want geral_curioso", entry.Strategy)
	}
	if entry.FailCount != 1 || entry.SuccessCount != 0 {
		t.Errorf("Counts = %d/%d, want 0 successes / 1 failure", entry.SuccessCount, entry.FailCount)
	}
	if entry.SuccessRate != 0 {
		t.Errorf("SuccessRate = %.2f, want 0", entry.SuccessRate)
	}
	if len(entry.Examples) != 0 {
		t.Error("Failures should not retain examples")
	}
}

// TestUpdateLedgerIncrementsExisting checks counter and rate maintenance
func TestUpdateLedgerIncrementsExisting(t *testing.T) {
	ledger := []models.StrategyStat{
		{Strategy: "topico_viagem", SuccessCount: 3, FailCount: 1, SuccessRate: 75},
	}

	out := updateLedger(ledger, "topico_viagem", "bora pra praia?", true)

	if len(out) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(out))
	}
	entry := out[0]
	if entry.SuccessCount != 4 || entry.FailCount != 1 {
		t.Errorf("Counts = %d/%d, want 4/1", entry.SuccessCount, entry.FailCount)
	}
	if entry.SuccessRate != 80 {
		t.Errorf("SuccessRate = %.2f, want 80", entry.SuccessRate)
	}
	if len(entry.Examples) != 1 || entry.Examples[0] != "bora pra praia?" {
		t.Errorf("Examples = %v, want the new success example", entry.Examples)
	}

	// The input slice is not mutated.
	if ledger[0].SuccessCount != 3 {
		t.Error("updateLedger mutated its input")
	}
}

// TestUpdateLedgerKeepsOtherEntries ensures untouched tags survive
func TestUpdateLedgerKeepsOtherEntries(t *testing.T) {
	ledger := []models.StrategyStat{
		{Strategy: "topico_musica", SuccessCount: 2, SuccessRate: 100},
		{Strategy: "geral_neutro", FailCount: 5},
	}

	out := updateLedger(ledger, "geral_neutro", "", false)

	if len(out) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(out))
	}
	if out[0].Strategy != "topico_musica" || out[0].SuccessCount != 2 {
		t.Errorf("Unrelated entry changed: %+v", out[0])
	}
	if out[1].FailCount != 6 {
		t.Errorf("FailCount = %d, want 6", out[1].FailCount)
	}
}

// TestSuccessRate covers the zero-total edge
func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name     string
		success  int64
		fail     int64
		expected float64
	}{
		{name: "No observations", success: 0, fail: 0, expected: 0},
		{name: "All successes", success: 4, fail: 0, expected: 100},
		{name: "Half and half", success: 2, fail: 2, expected: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := successRate(tt.success, tt.fail); got != tt.expected {
				t.Errorf("successRate(%d, %d) = %.2f, want %.2f", tt.success, tt.fail, got, tt.expected)
			}
		})
	}
}

// TestAppendCapped verifies the sliding example window
func TestAppendCapped(t *testing.T) {
	examples := []string{"a", "b", "c", "d", "e"}

	out := appendCapped(examples, "f", 5)
	if len(out) != 5 {
		t.Fatalf("Expected 5 examples, got %d", len(out))
	}
	if out[0] != "b" || out[4] != "f" {
		t.Errorf("Window = %v, want oldest dropped and newest kept", out)
	}

	if got := appendCapped(examples, "", 5); len(got) != 5 {
		t.Error("Empty example should not be appended")
	}
}
