package selfplay

import (
	"math/rand"

	"github.com/brensch/blockdrop/game"
)

// Bag deals pieces in shuffled runs of all seven kinds.
type Bag struct {
	rng     *rand.Rand
	pending []game.Kind
}

func NewBag(seed int64) *Bag {
	return &Bag{rng: rand.New(rand.NewSource(seed))}
}

func (b *Bag) refill() {
	for _, i := range b.rng.Perm(len(game.Kinds)) {
		b.pending = append(b.pending, game.Kinds[i])
	}
}

// Next removes and returns the next piece.
func (b *Bag) Next() game.Kind {
	if len(b.pending) == 0 {
		b.refill()
	}
	k := b.pending[0]
	b.pending = b.pending[1:]
	return k
}

// Peek returns the next n pieces without dealing them.
func (b *Bag) Peek(n int) []game.Kind {
	for len(b.pending) < n {
		b.refill()
	}
	return append([]game.Kind(nil), b.pending[:n]...)
}
