package common

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type TapeKind int

const (
	TradeEvent TapeKind = iota
	CancelEvent
)

func (k TapeKind) String() string {
	if k == TradeEvent {
		return "Trade"
	}
	return "CAN"
}

// TapeEvent is one entry of the append-only tape. Trade events fill the
// price/party fields; cancellations fill OrderID/Side.
type TapeEvent struct {
	Kind     TapeKind
	Venue    string
	Time     float64
	Price    int64
	Quantity int64
	Seller   string // party1: the ask side of the trade
	Buyer    string // party2: the bid side of the trade
	SellID   uint64
	BuyID    uint64
	OrderID  uint64 // cancelled order
	Side     Side   // side the cancelled order rested on
}

func (e TapeEvent) String() string {
	if e.Kind == TradeEvent {
		return fmt.Sprintf("{%s Trade t=%.3f $%d Q%d %s->%s}",
			e.Venue, e.Time, e.Price, e.Quantity, e.Seller, e.Buyer)
	}
	return fmt.Sprintf("{%s CAN t=%.3f OID:%d %s Q%d}", e.Venue, e.Time, e.OrderID, e.Side, e.Quantity)
}

// Fill is one (price, quantity) transaction reported to a trader.
type Fill struct {
	Price    int64
	Quantity int64
}

type MessageKind int

const (
	Ack MessageKind = iota
	Part
	Filled
	Fail
	Cancelled
)

var messageKinds = [...]string{"ACK", "PART", "FILL", "FAIL", "CAN"}

func (k MessageKind) String() string {
	if int(k) < len(messageKinds) {
		return messageKinds[k]
	}
	return fmt.Sprintf("MessageKind(%d)", int(k))
}

// Message is what the exchange sends back to a trader about one of its
// orders. It is a value: Revised is a private copy, never the exchange's
// own record.
type Message struct {
	Participant string
	OrderID     uint64
	Kind        MessageKind
	Fills       []Fill
	Revised     *Order // remaining order after a partial fill
	Fee         int64
}

func (m Message) String() string {
	return fmt.Sprintf("TID:%s OID:%d Event:%s Fills:%v Fee:%d", m.Participant, m.OrderID, m.Kind, m.Fills, m.Fee)
}

// FilledQuantity returns the total quantity across the message's fills.
func (m Message) FilledQuantity() int64 {
	var q int64
	for _, f := range m.Fills {
		q += f.Quantity
	}
	return q
}

// TradeSummary collapses every trade an order caused into a single record at
// the volume-weighted average price. Seller and Buyer are blank when more
// than one counterparty took part.
type TradeSummary struct {
	Time     float64
	Price    decimal.Decimal
	Quantity int64
	Seller   string
	Buyer    string
}

func (t TradeSummary) String() string {
	return fmt.Sprintf("{Trade t=%.3f $%s Q%d %s->%s}", t.Time, t.Price.StringFixed(2), t.Quantity, t.Seller, t.Buyer)
}
