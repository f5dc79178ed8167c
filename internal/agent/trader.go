// Package agent defines the contract between the session driver and the
// automated traders, with the bookkeeping every trader shares.
package agent

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"bourse/internal/common"
	"bourse/internal/engine"
)

// Trader works customer assignments by quoting on the exchange.
type Trader interface {
	ID() string
	Type() string
	Balance() int64
	Trades() int

	// AddAssignment hands the trader a new customer order, replacing the one
	// it was working. It reports whether the trader still has a quote live
	// that must now be cancelled.
	AddAssignment(a common.Assignment) bool
	Assignments() []common.Assignment

	// GetOrder asks for a quote. remaining is the fraction of the session
	// still to run.
	GetOrder(t, remaining float64, lob engine.Snapshot) (*common.Order, bool)
	// Submitted records an order the exchange accepted, with its id.
	Submitted(order common.Order)
	Quotes() []common.Order
	// Respond lets the trader react to the market after every order.
	Respond(t float64, lob engine.Snapshot, trade *common.TradeSummary)
	// Bookkeep applies an exchange message to the trader's own records.
	Bookkeep(msg common.Message, t float64) error
}

// Record is one blotter line: a message and the balance after it.
type Record struct {
	Message common.Message
	Balance int64
}

// Base carries the state and bookkeeping every trader shares. Strategies
// embed it and supply GetOrder.
type Base struct {
	id      string
	ttype   string
	balance int64
	birth   float64
	trades  int

	assignments []common.Assignment // at most one
	quotes      []common.Order      // live on the exchange, at most one
	blotter     []Record

	ProfitPerTime float64
}

func NewBase(ttype, id string, birth float64) Base {
	return Base{id: id, ttype: ttype, birth: birth}
}

func (b *Base) ID() string     { return b.id }
func (b *Base) Type() string   { return b.ttype }
func (b *Base) Balance() int64 { return b.balance }
func (b *Base) Trades() int    { return b.trades }

func (b *Base) Assignments() []common.Assignment { return slices.Clone(b.assignments) }
func (b *Base) Quotes() []common.Order           { return slices.Clone(b.quotes) }
func (b *Base) Blotter() []Record                { return slices.Clone(b.blotter) }

func (b *Base) AddAssignment(a common.Assignment) bool {
	b.assignments = []common.Assignment{a}
	return len(b.quotes) > 0
}

// working returns the assignment currently being worked.
func (b *Base) working() (common.Assignment, bool) {
	if len(b.assignments) == 0 {
		return common.Assignment{}, false
	}
	return b.assignments[0], true
}

// quote builds an order for the working assignment at the given price.
func (b *Base) quote(a common.Assignment, price int64, t float64) *common.Order {
	return &common.Order{
		Participant: b.id,
		Side:        a.Side,
		Style:       a.Style,
		Price:       price,
		Quantity:    a.Quantity,
		Time:        t,
		Expiry:      a.Expiry,
		Assignment:  a.ID,
	}
}

func (b *Base) Submitted(order common.Order) {
	b.quotes = append(b.quotes, order)
}

func (b *Base) Respond(float64, engine.Snapshot, *common.TradeSummary) {}

// Profit is what a fill earns against the customer's limit price.
func Profit(side common.Side, limit int64, fill common.Fill) int64 {
	if side == common.Bid {
		return (limit - fill.Price) * fill.Quantity
	}
	return (fill.Price - limit) * fill.Quantity
}

func (b *Base) Bookkeep(msg common.Message, t float64) error {
	switch msg.Kind {
	case common.Cancelled, common.Fail:
		b.dropQuote(msg.OrderID)

	case common.Filled, common.Part:
		i := slices.IndexFunc(b.quotes, func(o common.Order) bool { return o.ID == msg.OrderID })
		if i < 0 {
			return common.Contract("bookkeep "+b.id, fmt.Errorf("%w: %d is not one of my quotes", common.ErrUnknownOrder, msg.OrderID))
		}
		quote := b.quotes[i]
		j := slices.IndexFunc(b.assignments, func(a common.Assignment) bool { return a.ID == quote.Assignment })
		if j < 0 {
			return common.Contract("bookkeep "+b.id, fmt.Errorf("%w: assignment %d of order %d", common.ErrUnknownOrder, quote.Assignment, quote.ID))
		}
		limit := b.assignments[j].Price

		for _, fill := range msg.Fills {
			profit := Profit(quote.Side, limit, fill)
			if profit < 0 {
				return common.Contract("bookkeep "+b.id, fmt.Errorf("%w: %d on %v against limit %d", common.ErrNegativeProfit, profit, fill, limit))
			}
			b.balance += profit
			b.trades++
		}
		b.balance -= msg.Fee
		if age := t - b.birth; age > 0 {
			b.ProfitPerTime = float64(b.balance) / age
		}

		if msg.Kind == common.Filled {
			b.assignments = slices.Delete(b.assignments, j, j+1)
			b.dropQuote(quote.ID)
			break
		}
		if msg.Revised != nil {
			b.assignments[j].Quantity = msg.Revised.Quantity
			if rests(msg.Revised.Style) {
				b.quotes[i].Quantity = msg.Revised.Quantity
			} else {
				b.dropQuote(quote.ID)
			}
		}
	}
	b.blotter = append(b.blotter, Record{Message: msg, Balance: b.balance})
	return nil
}

// rests reports whether an order of this style keeps its remainder on the
// book after a partial fill.
func rests(s common.Style) bool {
	switch s {
	case common.Limit, common.GoodForDay, common.LimitOnOpen, common.LimitOnClose:
		return true
	}
	return false
}

func (b *Base) dropQuote(id uint64) {
	b.quotes = slices.DeleteFunc(b.quotes, func(o common.Order) bool { return o.ID == id })
}

// New builds a trader of a known type.
func New(ttype, id string, birth float64, rng *rand.Rand) (Trader, error) {
	switch ttype {
	case "GVWY":
		return &Giveaway{Base: NewBase(ttype, id, birth)}, nil
	case "ZIC":
		return &ZeroIntelligence{Base: NewBase(ttype, id, birth), rng: rng}, nil
	}
	return nil, fmt.Errorf("unknown trader type %q", ttype)
}

// Types lists the trader types New can build.
func Types() []string {
	return []string{"GVWY", "ZIC"}
}
