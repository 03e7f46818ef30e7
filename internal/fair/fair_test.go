package fair

import (
	"fmt"
	"testing"
)

func TestCrashPoint_Deterministic(t *testing.T) {
	seed, err := NewServerSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	a := CrashPoint(seed, "round-1")
	b := CrashPoint(seed, "round-1")
	if a != b {
		t.Fatalf("same seed and round gave %v and %v", a, b)
	}
}

func TestCrashPoint_RoundIDChangesOutcome(t *testing.T) {
	seed := "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"
	seen := make(map[float64]bool)
	for i := 0; i < 10; i++ {
		seen[CrashPoint(seed, fmt.Sprintf("round-%d", i))] = true
	}
	if len(seen) < 2 {
		t.Error("different rounds from the same seed all share one crash point")
	}
}

func TestCrashPoint_Range(t *testing.T) {
	seed := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	for i := 0; i < 5000; i++ {
		m := CrashPoint(seed, fmt.Sprintf("round-%d", i))
		if m < 1.0 {
			t.Fatalf("crash point below 1.00: %v", m)
		}
		if m > 100.0 {
			t.Fatalf("crash point above 100.00: %v", m)
		}
	}
}

func TestCrashPoint_BiasedLow(t *testing.T) {
	seed := "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
	const n = 5000
	var low, mid, high int
	for i := 0; i < n; i++ {
		m := CrashPoint(seed, fmt.Sprintf("round-%d", i))
		switch {
		case m < 2.0:
			low++
		case m < 9.0:
			mid++
		default:
			high++
		}
	}

	// Cutoffs are 50% / 35% / 15%; allow generous statistical slack.
	if frac := float64(low) / n; frac < 0.40 || frac > 0.60 {
		t.Errorf("low tier fraction %.3f outside [0.40, 0.60]", frac)
	}
	if frac := float64(mid) / n; frac < 0.25 || frac > 0.45 {
		t.Errorf("mid tier fraction %.3f outside [0.25, 0.45]", frac)
	}
	if frac := float64(high) / n; frac < 0.08 || frac > 0.25 {
		t.Errorf("high tier fraction %.3f outside [0.08, 0.25]", frac)
	}
	if low <= high {
		t.Errorf("distribution not biased low: %d low vs %d high", low, high)
	}
}

func TestCommitment_Stable(t *testing.T) {
	seed := "deadbeef"
	if Commitment(seed) != Commitment(seed) {
		t.Fatal("commitment is not deterministic")
	}
	if Commitment(seed) == Commitment(seed+"x") {
		t.Fatal("distinct seeds share a commitment")
	}
}

func TestVerify(t *testing.T) {
	seed, err := NewServerSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	roundID := "round-verify"
	commitment := Commitment(seed)
	crash := CrashPoint(seed, roundID)

	if !Verify(seed, roundID, commitment, crash) {
		t.Fatal("genuine reveal failed verification")
	}

	tests := []struct {
		name       string
		seed       string
		roundID    string
		commitment string
		crash      float64
	}{
		{"wrong seed", seed + "00", roundID, commitment, crash},
		{"wrong round", seed, "other-round", commitment, crash},
		{"wrong commitment", seed, roundID, Commitment("other"), crash},
		{"wrong crash point", seed, roundID, commitment, crash + 0.01},
	}
	for _, tt := range tests {
		if Verify(tt.seed, tt.roundID, tt.commitment, tt.crash) {
			t.Errorf("%s: verification should fail", tt.name)
		}
	}
}

func TestNewServerSeed_Unique(t *testing.T) {
	a, err := NewServerSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	b, err := NewServerSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if a == b {
		t.Fatal("two fresh seeds are identical")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}
