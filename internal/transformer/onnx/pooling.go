package onnx

import "github.com/hankgalt/dualencoder/pkg/domain"

// CLSPool takes the hidden vector at sequence position 0 for every batch
// item. Rows are copies, safe to keep past the next forward pass.
func CLSPool(h domain.HiddenStates) [][]float32 {
	out := make([][]float32, h.B)
	for b := 0; b < h.B; b++ {
		row := make([]float32, h.H)
		copy(row, h.Token(b, 0))
		out[b] = row
	}
	return out
}
