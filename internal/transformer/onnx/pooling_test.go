package onnx

import (
	"testing"

	"github.com/hankgalt/dualencoder/pkg/domain"
)

func TestCLSPool(t *testing.T) {
	// B=2, T=3, H=2; position 0 of item b holds [b+1, -(b+1)]
	h := domain.HiddenStates{B: 2, T: 3, H: 2, Data: make([]float32, 12)}
	for b := 0; b < 2; b++ {
		cls := h.Token(b, 0)
		cls[0] = float32(b + 1)
		cls[1] = -float32(b + 1)
		// later positions carry garbage that pooling must ignore
		h.Token(b, 1)[0] = 99
		h.Token(b, 2)[1] = -99
	}

	out := CLSPool(h)
	if len(out) != 2 {
		t.Fatalf("got %d rows, want 2", len(out))
	}
	for b := 0; b < 2; b++ {
		if out[b][0] != float32(b+1) || out[b][1] != -float32(b+1) {
			t.Errorf("row %d = %v, want [%d %d]", b, out[b], b+1, -(b + 1))
		}
	}

	// pooled rows are copies, not views
	out[0][0] = 42
	if h.Token(0, 0)[0] == 42 {
		t.Error("pooled row must not alias the hidden-state buffer")
	}
}

func TestCLSPool_EmptyBatch(t *testing.T) {
	out := CLSPool(domain.HiddenStates{B: 0, T: 4, H: 8})
	if len(out) != 0 {
		t.Fatalf("got %d rows, want 0", len(out))
	}
}
