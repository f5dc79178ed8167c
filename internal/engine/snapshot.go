package engine

import (
	"slices"

	"bourse/internal/book"
	"bourse/internal/common"

	"github.com/shopspring/decimal"
)

// SideSnapshot is the published view of one side of the lit book.
type SideSnapshot struct {
	Best     int64 // zero when the side is empty
	BestQty  int64
	Worst    int64 // system bound on this side
	Orders   int
	Levels   []book.Level // anonymized, best first
	Occupied bool
}

// Snapshot is what traders see of the exchange. It is built fresh for every
// call and never shares memory with the books.
type Snapshot struct {
	Exchange   string
	Time       float64
	Bids       SideSnapshot
	Asks       SideSnapshot
	Last       LastTrade
	Tape       []common.TapeEvent
	Midprice   decimal.NullDecimal
	Microprice decimal.NullDecimal
}

// PublishLOB builds the public snapshot of the lit venue's book. The dark
// book is never published, but its prints are: the tape is the consolidated
// tape of both venues, its last depth events or all of it when depth is not
// positive.
func (ex *Exchange) PublishLOB(t float64, depth int) Snapshot {
	snap := Snapshot{
		Exchange: ex.cfg.ID,
		Time:     t,
		Bids:     publishSide(ex.lit.Bids),
		Asks:     publishSide(ex.lit.Asks),
		Last:     ex.lit.LastTrade(),
	}

	tape := ex.tape
	if depth > 0 && len(tape) > depth {
		tape = tape[len(tape)-depth:]
	}
	snap.Tape = slices.Clone(tape)

	snap.Midprice = midprice(snap.Bids, snap.Asks)
	snap.Microprice = microprice(snap.Bids, snap.Asks)
	return snap
}

func publishSide(side *book.SideBook) SideSnapshot {
	s := SideSnapshot{
		Worst:  side.Worst(),
		Orders: side.Len(),
		Levels: side.Anonymized(),
	}
	if best, ok := side.Best(); ok {
		s.Best, s.BestQty, s.Occupied = best.Price, best.Quantity, true
	}
	return s
}

// midprice is the mean of the best prices, or the only best price there is.
func midprice(bids, asks SideSnapshot) decimal.NullDecimal {
	switch {
	case bids.Occupied && asks.Occupied:
		sum := decimal.NewFromInt(bids.Best + asks.Best)
		return decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(2)))
	case bids.Occupied:
		return decimal.NewNullDecimal(decimal.NewFromInt(bids.Best))
	case asks.Occupied:
		return decimal.NewNullDecimal(decimal.NewFromInt(asks.Best))
	}
	return decimal.NullDecimal{}
}

// microprice weights each best price by the quantity on the other side:
// (bid*askQty + ask*bidQty) / (bidQty + askQty).
func microprice(bids, asks SideSnapshot) decimal.NullDecimal {
	if !bids.Occupied || !asks.Occupied {
		return decimal.NullDecimal{}
	}
	num := decimal.NewFromInt(bids.Best*asks.BestQty + asks.Best*bids.BestQty)
	den := decimal.NewFromInt(bids.BestQty + asks.BestQty)
	return decimal.NewNullDecimal(num.Div(den))
}
