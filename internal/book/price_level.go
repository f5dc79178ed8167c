package book

import (
	"sort"

	"bourse/internal/common"
)

// PriceLevel holds every live order resting at one price, sorted by arrival
// time (order id breaks ties). Quantity is kept equal to the sum of the
// orders' remaining quantities.
type PriceLevel struct {
	Price    int64
	Quantity int64
	orders   []*common.Order
}

func (l *PriceLevel) front() *common.Order {
	return l.orders[0]
}

func (l *PriceLevel) popFront() {
	l.orders[0] = nil
	l.orders = l.orders[1:]
}

func (l *PriceLevel) empty() bool {
	return len(l.orders) == 0
}

// insert places the order behind everything that arrived before it.
func (l *PriceLevel) insert(o *common.Order) {
	i := sort.Search(len(l.orders), func(i int) bool {
		r := l.orders[i]
		return r.Time > o.Time || (r.Time == o.Time && r.ID > o.ID)
	})
	l.orders = append(l.orders, nil)
	copy(l.orders[i+1:], l.orders[i:])
	l.orders[i] = o
	l.Quantity += o.Quantity
}

func (l *PriceLevel) remove(id uint64) *common.Order {
	for i, o := range l.orders {
		if o.ID == id {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			l.Quantity -= o.Quantity
			return o
		}
	}
	return nil
}

// Level is the anonymized view of a price level: no identities, only the
// aggregate quantity.
type Level struct {
	Price    int64
	Quantity int64
}

// Resting is the exchange-internal record of one order on a level.
type Resting struct {
	Time        float64
	Quantity    int64
	Participant string
	OrderID     uint64
}

// Entry is one price level with its FIFO queue, as the exchange sees it.
type Entry struct {
	Price    int64
	Quantity int64
	Orders   []Resting
}
