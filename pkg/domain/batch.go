package domain

import "fmt"

// Batch is one tokenized input batch, shaped [B][T]. All rows share a
// padded length T; padding is the tokenizer's responsibility. TokenTypeIDs,
// PositionIDs and AttentionMask are optional and may be nil.
type Batch struct {
	InputIDs      [][]int32
	TokenTypeIDs  [][]int32
	PositionIDs   [][]int32
	AttentionMask [][]int32
}

// Size returns the number of sequences in the batch.
func (b Batch) Size() int {
	return len(b.InputIDs)
}

// SeqLen returns the shared padded sequence length, 0 for an empty batch.
func (b Batch) SeqLen() int {
	if len(b.InputIDs) == 0 {
		return 0
	}
	return len(b.InputIDs[0])
}

// Validate checks that all present fields agree on [B][T].
func (b Batch) Validate() error {
	B, T := b.Size(), b.SeqLen()
	check := func(name string, rows [][]int32) error {
		if rows == nil {
			return nil
		}
		if len(rows) != B {
			return fmt.Errorf("%s batch size %d, want %d", name, len(rows), B)
		}
		for i, row := range rows {
			if len(row) != T {
				return fmt.Errorf("%s row %d length %d, want %d", name, i, len(row), T)
			}
		}
		return nil
	}
	for i, row := range b.InputIDs {
		if len(row) != T {
			return fmt.Errorf("input_ids row %d length %d, want %d", i, len(row), T)
		}
	}
	if err := check("token_type_ids", b.TokenTypeIDs); err != nil {
		return err
	}
	if err := check("position_ids", b.PositionIDs); err != nil {
		return err
	}
	return check("attention_mask", b.AttentionMask)
}

// HiddenStates holds per-token hidden vectors for a batch, flattened
// row-major as [B*T*H]float32.
type HiddenStates struct {
	Data []float32
	B    int
	T    int
	H    int
}

// Token returns the hidden vector at (batch item b, position t) as a view
// into the underlying buffer.
func (h HiddenStates) Token(b, t int) []float32 {
	base := (b*h.T + t) * h.H
	return h.Data[base : base+h.H]
}
