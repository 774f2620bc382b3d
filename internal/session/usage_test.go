package session

import "testing"

func TestEstimateCostKnownModel(t *testing.T) {
	cost := EstimateCost("claude-3-5-sonnet-latest", 1_000_000, 1_000_000)
	if cost != 18.00 {
		t.Fatalf("expected 18.00, got %v", cost)
	}
}

func TestEstimateCostUnknownModelIsZero(t *testing.T) {
	if cost := EstimateCost("not-a-real-model", 1000, 1000); cost != 0 {
		t.Fatalf("expected 0 for unknown model, got %v", cost)
	}
}

func TestEstimateTokensHeuristic(t *testing.T) {
	if got := EstimateTokens("12345678"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
