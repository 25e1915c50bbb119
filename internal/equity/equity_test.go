package equity

import (
	"errors"
	"math"
	"testing"
)

func TestSimulate_CompoundsInOrder(t *testing.T) {
	points, err := Simulate([]float64{-5.0, 15.0}, 1000, 0.01)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	want := []float64{1000, 999.5, 1000.99925}
	if len(points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(points))
	}
	for i, w := range want {
		if points[i].Index != i {
			t.Errorf("point %d: index %d", i, points[i].Index)
		}
		if math.Abs(points[i].Balance-w) > 1e-9 {
			t.Errorf("point %d: balance %v, want %v", i, points[i].Balance, w)
		}
	}
}

func TestSimulate_EmptyGainsReturnsStart(t *testing.T) {
	points, err := Simulate(nil, 250, 0.02)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(points) != 1 || points[0].Balance != 250 {
		t.Errorf("expected single starting point, got %+v", points)
	}
}

func TestSimulate_Idempotent(t *testing.T) {
	gains := []float64{3.2, -1, -1, 7.5, 0, -2.25}
	first, err := Simulate(gains, 1000, 0.01)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	for run := 0; run < 5; run++ {
		again, _ := Simulate(gains, 1000, 0.01)
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("run %d: point %d differs", run, i)
			}
		}
	}
}

func TestSimulate_OrderMatters(t *testing.T) {
	a, _ := Simulate([]float64{50, -50}, 1000, 1)
	b, _ := Simulate([]float64{-50, 50}, 1000, 1)
	if a[1].Balance != 1500 || b[1].Balance != 500 {
		t.Errorf("unexpected intermediate balances: %v / %v", a[1].Balance, b[1].Balance)
	}
}

func TestSimulate_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		gains   []float64
		balance float64
		risk    float64
		wantErr error
	}{
		{"zero risk", nil, 1000, 0, ErrInvalidRisk},
		{"negative risk", nil, 1000, -0.01, ErrInvalidRisk},
		{"zero balance", nil, 0, 0.01, ErrInvalidBalance},
		{"NaN balance", nil, math.NaN(), 0.01, ErrInvalidBalance},
		{"NaN gain", []float64{1, math.NaN()}, 1000, 0.01, ErrInvalidGain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Simulate(tt.gains, tt.balance, tt.risk)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
