// Package distributed provides the process-group collaborators the dual
// encoder gathers candidate embeddings through. A group exposes the calling
// process's rank, the world size, and a rank-ordered AllGather.
package distributed

import (
	"context"
	"fmt"
	"sync"
)

// SingleProcess is the degenerate group: rank 0, world size 1, gather is
// identity. It is the default when no group is configured.
type SingleProcess struct{}

func (SingleProcess) Rank() int      { return 0 }
func (SingleProcess) WorldSize() int { return 1 }

func (SingleProcess) AllGather(ctx context.Context, local [][]float32) ([][]float32, error) {
	return local, nil
}

// LocalGroup coordinates data-parallel workers running as goroutines in one
// process. Each worker holds a Member; AllGather is a rendezvous barrier that
// blocks until every member has contributed, then hands all members the
// concatenation of contributions in rank order.
type LocalGroup struct {
	world int

	mu    sync.Mutex
	round *gatherRound
}

type gatherRound struct {
	parts       [][][]float32
	contributed []bool
	missing     int
	result      [][]float32
	done        chan struct{}
}

// NewLocalGroup creates a group for worldSize cooperating workers.
func NewLocalGroup(worldSize int) (*LocalGroup, error) {
	if worldSize < 1 {
		return nil, fmt.Errorf("world size %d, want >= 1", worldSize)
	}
	return &LocalGroup{world: worldSize}, nil
}

// Member returns the group handle for the given rank.
func (g *LocalGroup) Member(rank int) (*Member, error) {
	if rank < 0 || rank >= g.world {
		return nil, fmt.Errorf("rank %d out of range for world size %d", rank, g.world)
	}
	return &Member{g: g, rank: rank}, nil
}

// Member is one worker's view of a LocalGroup.
type Member struct {
	g    *LocalGroup
	rank int
}

func (m *Member) Rank() int      { return m.rank }
func (m *Member) WorldSize() int { return m.g.world }

// AllGather contributes local to the current round and blocks until all
// members have done the same. Every member receives the same result: the
// rows of rank 0's contribution, then rank 1's, and so on. A member that
// returns on context cancellation leaves its contribution in place; the
// remaining members still complete the round.
func (m *Member) AllGather(ctx context.Context, local [][]float32) ([][]float32, error) {
	g := m.g
	g.mu.Lock()
	if g.round == nil {
		g.round = &gatherRound{
			parts:       make([][][]float32, g.world),
			contributed: make([]bool, g.world),
			missing:     g.world,
			done:        make(chan struct{}),
		}
	}
	r := g.round
	if r.contributed[m.rank] {
		g.mu.Unlock()
		return nil, fmt.Errorf("rank %d contributed twice to the same gather round", m.rank)
	}
	r.parts[m.rank] = local
	r.contributed[m.rank] = true
	r.missing--
	if r.missing == 0 {
		var out [][]float32
		for _, p := range r.parts {
			out = append(out, p...)
		}
		r.result = out
		g.round = nil // next AllGather starts a fresh round
		close(r.done)
	}
	g.mu.Unlock()

	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
