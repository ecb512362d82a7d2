package domain

import "testing"

func TestBatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		batch   Batch
		wantErr bool
	}{
		{
			name:  "empty",
			batch: Batch{},
		},
		{
			name: "ids only",
			batch: Batch{
				InputIDs: [][]int32{{1, 2}, {3, 4}},
			},
		},
		{
			name: "all fields aligned",
			batch: Batch{
				InputIDs:      [][]int32{{1, 2}},
				TokenTypeIDs:  [][]int32{{0, 0}},
				PositionIDs:   [][]int32{{0, 1}},
				AttentionMask: [][]int32{{1, 1}},
			},
		},
		{
			name: "ragged ids",
			batch: Batch{
				InputIDs: [][]int32{{1, 2}, {3}},
			},
			wantErr: true,
		},
		{
			name: "mask batch size mismatch",
			batch: Batch{
				InputIDs:      [][]int32{{1, 2}, {3, 4}},
				AttentionMask: [][]int32{{1, 1}},
			},
			wantErr: true,
		},
		{
			name: "type ids length mismatch",
			batch: Batch{
				InputIDs:     [][]int32{{1, 2}},
				TokenTypeIDs: [][]int32{{0}},
			},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.batch.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %t", err, tc.wantErr)
			}
		})
	}
}

func TestHiddenStatesToken(t *testing.T) {
	// B=2, T=2, H=3: value encodes (b, t, h)
	h := HiddenStates{B: 2, T: 2, H: 3, Data: make([]float32, 12)}
	for i := range h.Data {
		h.Data[i] = float32(i)
	}
	tok := h.Token(1, 0)
	if len(tok) != 3 || tok[0] != 6 || tok[2] != 8 {
		t.Errorf("Token(1,0) = %v, want [6 7 8]", tok)
	}
}
