package book

import (
	"fmt"

	"bourse/internal/common"

	"github.com/tidwall/btree"
)

type PriceLevels = btree.BTreeG[*PriceLevel]

// SideBook is one side (bids or asks) of one venue. Price levels are kept in
// a B-tree ordered best-first, so the minimum item is always the top of the
// book. Only the level an operation touches is updated.
type SideBook struct {
	side  common.Side
	worst int64 // worst price this side can show, published with the book

	levels *PriceLevels
	orders map[uint64]*common.Order // live orders by id

	takerFee int64 // fee per unit charged to liquidity takers
}

func New(side common.Side, worst int64) *SideBook {
	var less func(a, b *PriceLevel) bool
	switch side {
	case common.Bid:
		// Sorted greatest first.
		less = func(a, b *PriceLevel) bool { return a.Price > b.Price }
	default:
		// Sorted least first.
		less = func(a, b *PriceLevel) bool { return a.Price < b.Price }
	}
	return &SideBook{
		side:   side,
		worst:  worst,
		levels: btree.NewBTreeGOptions(less, btree.Options{NoLocks: true}),
		orders: make(map[uint64]*common.Order),
	}
}

// SetTakerFee sets the per-unit fee charged on the incoming order's fills.
func (b *SideBook) SetTakerFee(perUnit int64) {
	b.takerFee = perUnit
}

func (b *SideBook) Side() common.Side { return b.side }
func (b *SideBook) Worst() int64      { return b.worst }

// Len returns the number of live orders.
func (b *SideBook) Len() int { return len(b.orders) }

// Levels returns the number of distinct price levels.
func (b *SideBook) Levels() int { return b.levels.Len() }

func (b *SideBook) Has(id uint64) bool {
	_, ok := b.orders[id]
	return ok
}

// Get returns a copy of the live order with the given id.
func (b *SideBook) Get(id uint64) (common.Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return common.Order{}, false
	}
	return o.Clone(), true
}

// Add inserts the order, or overwrites the live order with the same id. The
// overwritten order loses its place in the queue. Returns true when the id
// was not already live.
func (b *SideBook) Add(order common.Order) bool {
	_, exists := b.orders[order.ID]
	if exists {
		b.remove(order.ID)
	}

	o := order.Clone()
	b.orders[o.ID] = &o

	// Levels comparator only accounts for price, so a dummy level serves as
	// the search key.
	level, ok := b.levels.GetMut(&PriceLevel{Price: o.Price})
	if !ok {
		level = &PriceLevel{Price: o.Price}
		b.levels.Set(level)
	}
	level.insert(&o)
	return !exists
}

// Cancel removes a live order, reporting a CAN to its owner and a
// cancellation on the tape. An unknown id is a contract violation.
func (b *SideBook) Cancel(t float64, id uint64, venue string) (common.Order, Response, error) {
	o := b.remove(id)
	if o == nil {
		return common.Order{}, Response{}, common.Contract("cancel",
			fmt.Errorf("%w: %d on %s %s book", common.ErrUnknownOrder, id, venue, b.side))
	}
	resp := Response{
		Messages: []common.Message{{
			Participant: o.Participant,
			OrderID:     o.ID,
			Kind:        common.Cancelled,
		}},
		Tape: []common.TapeEvent{{
			Kind:     common.CancelEvent,
			Venue:    venue,
			Time:     t,
			OrderID:  o.ID,
			Side:     b.side,
			Quantity: o.Quantity,
		}},
	}
	return *o, resp, nil
}

func (b *SideBook) remove(id uint64) *common.Order {
	o, ok := b.orders[id]
	if !ok {
		return nil
	}
	delete(b.orders, id)

	level, ok := b.levels.GetMut(&PriceLevel{Price: o.Price})
	if !ok {
		return o
	}
	level.remove(id)
	if level.empty() {
		b.levels.Delete(level)
	}
	return o
}

// acceptable reports whether a level price on this side is equal to or
// better than the incoming order's limit.
func (b *SideBook) acceptable(levelPrice, limit int64) bool {
	if b.side == common.Bid {
		return levelPrice >= limit
	}
	return levelPrice <= limit
}

// Depth returns the cumulative quantity at prices equal to or better than
// limit, from the incoming order's point of view.
func (b *SideBook) Depth(limit int64) int64 {
	var depth int64
	b.levels.Scan(func(level *PriceLevel) bool {
		if !b.acceptable(level.Price, limit) {
			return false
		}
		depth += level.Quantity
		return true
	})
	return depth
}

// Best returns the top level of this side.
func (b *SideBook) Best() (Level, bool) {
	level, ok := b.levels.Min()
	if !ok {
		return Level{}, false
	}
	return Level{Price: level.Price, Quantity: level.Quantity}, true
}

// Anonymized returns the published view of this side, best price first.
func (b *SideBook) Anonymized() []Level {
	out := make([]Level, 0, b.levels.Len())
	b.levels.Scan(func(level *PriceLevel) bool {
		out = append(out, Level{Price: level.Price, Quantity: level.Quantity})
		return true
	})
	return out
}

// Entries returns the full internal book, best price first, each level in
// time priority.
func (b *SideBook) Entries() []Entry {
	out := make([]Entry, 0, b.levels.Len())
	b.levels.Scan(func(level *PriceLevel) bool {
		e := Entry{Price: level.Price, Quantity: level.Quantity, Orders: make([]Resting, len(level.orders))}
		for i, o := range level.orders {
			e.Orders[i] = Resting{Time: o.Time, Quantity: o.Quantity, Participant: o.Participant, OrderID: o.ID}
		}
		out = append(out, e)
		return true
	})
	return out
}

// Orders returns copies of the live orders in priority order. When
// participant is non-empty only that participant's orders are returned.
func (b *SideBook) Orders(participant string) []common.Order {
	var out []common.Order
	b.levels.Scan(func(level *PriceLevel) bool {
		for _, o := range level.orders {
			if participant == "" || o.Participant == participant {
				out = append(out, o.Clone())
			}
		}
		return true
	})
	return out
}

// Verify checks the book's structural invariants: levels strictly ordered
// best-first, orders within a level in arrival order, level quantities equal
// to the sum of their orders, and the live-order index agreeing with the
// levels.
func (b *SideBook) Verify() error {
	var (
		prev   *PriceLevel
		seen   int
		failed error
	)
	b.levels.Scan(func(level *PriceLevel) bool {
		if prev != nil && (prev.Price == level.Price || !b.acceptable(prev.Price, level.Price)) {
			failed = fmt.Errorf("%s levels out of order: %d before %d", b.side, prev.Price, level.Price)
			return false
		}
		if level.empty() {
			failed = fmt.Errorf("%s level %d is empty", b.side, level.Price)
			return false
		}
		var sum int64
		for i, o := range level.orders {
			if live, ok := b.orders[o.ID]; !ok || live != o {
				failed = fmt.Errorf("%s level %d holds order %d missing from index", b.side, level.Price, o.ID)
				return false
			}
			if o.Price != level.Price {
				failed = fmt.Errorf("order %d priced %d filed under %d", o.ID, o.Price, level.Price)
				return false
			}
			if i > 0 && level.orders[i-1].Time > o.Time {
				failed = fmt.Errorf("%s level %d out of time priority at order %d", b.side, level.Price, o.ID)
				return false
			}
			sum += o.Quantity
		}
		if sum != level.Quantity {
			failed = fmt.Errorf("%s level %d quantity %d, orders sum to %d", b.side, level.Price, level.Quantity, sum)
			return false
		}
		seen += len(level.orders)
		prev = level
		return true
	})
	if failed != nil {
		return failed
	}
	if seen != len(b.orders) {
		return fmt.Errorf("%s index holds %d orders, levels hold %d", b.side, len(b.orders), seen)
	}
	return nil
}
