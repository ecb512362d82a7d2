// Package vecmath holds the small amount of dense float math the dual
// encoder needs: similarity scoring and the contrastive loss. Embeddings are
// stored float32; reductions accumulate in float64.
package vecmath

import (
	"fmt"
	"math"
)

// Dot returns the dot product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return float32(s)
}

// RowwiseDot returns, per row, the dot product of the corresponding rows of
// a and b. Row counts and row lengths must agree.
func RowwiseDot(a, b [][]float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("row count mismatch: %d vs %d", len(a), len(b))
	}
	out := make([]float32, len(a))
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return nil, fmt.Errorf("row %d length mismatch: %d vs %d", i, len(a[i]), len(b[i]))
		}
		out[i] = Dot(a[i], b[i])
	}
	return out, nil
}

// ConcatRows appends the rows of b after the rows of a, preserving order.
func ConcatRows(a, b [][]float32) [][]float32 {
	out := make([][]float32, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// MatMulTransposed computes q × cᵀ: every query row scored against every
// candidate row. Result is [len(q)][len(c)].
func MatMulTransposed(q, c [][]float32) ([][]float32, error) {
	out := make([][]float32, len(q))
	for i := range q {
		row := make([]float32, len(c))
		for j := range c {
			if len(q[i]) != len(c[j]) {
				return nil, fmt.Errorf("dim mismatch: query row %d has %d, candidate row %d has %d",
					i, len(q[i]), j, len(c[j]))
			}
			row[j] = Dot(q[i], c[j])
		}
		out[i] = row
	}
	return out, nil
}

// SoftmaxCrossEntropy returns the mean softmax cross-entropy between each
// logits row and its integer label, using the max-shifted log-sum-exp for
// stability.
func SoftmaxCrossEntropy(logits [][]float32, labels []int) (float32, error) {
	if len(labels) != len(logits) {
		return 0, fmt.Errorf("label count %d, want %d", len(labels), len(logits))
	}
	if len(logits) == 0 {
		return 0, fmt.Errorf("empty logits")
	}
	var total float64
	for i, row := range logits {
		lbl := labels[i]
		if lbl < 0 || lbl >= len(row) {
			return 0, fmt.Errorf("label %d out of range for %d candidates", lbl, len(row))
		}
		maxLogit := float64(row[0])
		for _, v := range row[1:] {
			if float64(v) > maxLogit {
				maxLogit = float64(v)
			}
		}
		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(float64(v) - maxLogit)
		}
		logSumExp := maxLogit + math.Log(sumExp)
		total += logSumExp - float64(row[lbl])
	}
	return float32(total / float64(len(logits))), nil
}

// Accuracy returns the fraction of rows whose arg-max column equals the label.
func Accuracy(logits [][]float32, labels []int) (float32, error) {
	if len(labels) != len(logits) {
		return 0, fmt.Errorf("label count %d, want %d", len(labels), len(logits))
	}
	if len(logits) == 0 {
		return 0, fmt.Errorf("empty logits")
	}
	hits := 0
	for i, row := range logits {
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		if best == labels[i] {
			hits++
		}
	}
	return float32(hits) / float32(len(logits)), nil
}

// L2Normalize scales v to unit length in place. Zero vectors are left alone.
func L2Normalize(v []float32) {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	if s == 0 {
		return
	}
	n := float32(1.0 / math.Sqrt(s))
	for i := range v {
		v[i] *= n
	}
}
