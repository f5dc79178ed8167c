package agent

import (
	"math/rand/v2"

	"bourse/internal/common"
	"bourse/internal/engine"
)

// Giveaway quotes its customer's limit price: it gives away all its surplus.
type Giveaway struct {
	Base
}

func (g *Giveaway) GetOrder(t, _ float64, _ engine.Snapshot) (*common.Order, bool) {
	a, ok := g.working()
	if !ok {
		return nil, false
	}
	return g.quote(a, a.Price, t), true
}

// ZeroIntelligence quotes a uniformly random price between its limit and the
// worst price the exchange allows on its side, so it never trades at a loss.
type ZeroIntelligence struct {
	Base
	rng *rand.Rand
}

func (z *ZeroIntelligence) GetOrder(t, _ float64, lob engine.Snapshot) (*common.Order, bool) {
	a, ok := z.working()
	if !ok {
		return nil, false
	}
	var lo, hi int64
	if a.Side == common.Bid {
		lo, hi = lob.Bids.Worst, a.Price
	} else {
		lo, hi = a.Price, lob.Asks.Worst
	}
	price := a.Price
	if hi > lo {
		price = lo + z.rng.Int64N(hi-lo+1)
	}
	return z.quote(a, price, t), true
}
