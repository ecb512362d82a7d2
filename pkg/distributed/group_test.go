package distributed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSingleProcess(t *testing.T) {
	g := SingleProcess{}
	if g.Rank() != 0 || g.WorldSize() != 1 {
		t.Fatalf("rank/world = %d/%d, want 0/1", g.Rank(), g.WorldSize())
	}
	local := [][]float32{{1, 2}}
	got, err := g.AllGather(context.Background(), local)
	if err != nil {
		t.Fatalf("AllGather: %v", err)
	}
	if len(got) != 1 || got[0][0] != 1 {
		t.Fatalf("got %v, want the local contribution unchanged", got)
	}
}

func TestLocalGroup_RankOrder(t *testing.T) {
	const W = 3
	g, err := NewLocalGroup(W)
	if err != nil {
		t.Fatalf("NewLocalGroup: %v", err)
	}

	var wg sync.WaitGroup
	results := make([][][]float32, W)
	errs := make([]error, W)
	for r := 0; r < W; r++ {
		m, err := g.Member(r)
		if err != nil {
			t.Fatalf("Member(%d): %v", r, err)
		}
		wg.Add(1)
		go func(r int, m *Member) {
			defer wg.Done()
			// rank r contributes rows [10r, 10r+1]
			local := [][]float32{{float32(10 * r)}, {float32(10*r + 1)}}
			results[r], errs[r] = m.AllGather(context.Background(), local)
		}(r, m)
	}
	wg.Wait()

	want := []float32{0, 1, 10, 11, 20, 21}
	for r := 0; r < W; r++ {
		if errs[r] != nil {
			t.Fatalf("rank %d: %v", r, errs[r])
		}
		if len(results[r]) != len(want) {
			t.Fatalf("rank %d got %d rows, want %d", r, len(results[r]), len(want))
		}
		for i, v := range want {
			if results[r][i][0] != v {
				t.Errorf("rank %d row %d = %v, want %v (rank order broken)", r, i, results[r][i][0], v)
			}
		}
	}
}

func TestLocalGroup_MultipleRounds(t *testing.T) {
	const W, rounds = 2, 3
	g, err := NewLocalGroup(W)
	if err != nil {
		t.Fatalf("NewLocalGroup: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, W)
	for r := 0; r < W; r++ {
		m, _ := g.Member(r)
		wg.Add(1)
		go func(r int, m *Member) {
			defer wg.Done()
			for round := 0; round < rounds; round++ {
				got, err := m.AllGather(context.Background(), [][]float32{{float32(round)}})
				if err != nil {
					errs[r] = err
					return
				}
				if len(got) != W || got[0][0] != float32(round) || got[1][0] != float32(round) {
					errs[r] = errors.New("round result mismatch")
					return
				}
			}
		}(r, m)
	}
	wg.Wait()
	for r, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", r, err)
		}
	}
}

func TestLocalGroup_ContextCancel(t *testing.T) {
	g, err := NewLocalGroup(2)
	if err != nil {
		t.Fatalf("NewLocalGroup: %v", err)
	}
	m, _ := g.Member(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// rank 1 never shows up; the gather must unblock on cancellation
	if _, err := m.AllGather(ctx, [][]float32{{1}}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestLocalGroup_MemberValidation(t *testing.T) {
	if _, err := NewLocalGroup(0); err == nil {
		t.Error("world size 0 must error")
	}
	g, err := NewLocalGroup(2)
	if err != nil {
		t.Fatalf("NewLocalGroup: %v", err)
	}
	if _, err := g.Member(-1); err == nil {
		t.Error("negative rank must error")
	}
	if _, err := g.Member(2); err == nil {
		t.Error("rank >= world size must error")
	}
	m, err := g.Member(1)
	if err != nil {
		t.Fatalf("Member(1): %v", err)
	}
	if m.Rank() != 1 || m.WorldSize() != 2 {
		t.Errorf("rank/world = %d/%d, want 1/2", m.Rank(), m.WorldSize())
	}
}
