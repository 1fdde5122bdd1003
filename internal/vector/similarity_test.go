package vector

import (
	"math"
	"testing"
)

func TestL2Distance(t *testing.T) {
	if d := L2Distance([]float32{0, 0}, []float32{3, 4}); math.Abs(d-5) > 1e-9 {
		t.Errorf("L2Distance = %v, want 5", d)
	}
	if d := SquaredL2([]float32{1, 2}, []float32{1, 2}); d != 0 {
		t.Errorf("SquaredL2 of equal vectors = %v", d)
	}
}
