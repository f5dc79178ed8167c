package engine

import (
	"bourse/internal/book"
	"bourse/internal/common"
)

// VenueState tracks a venue through its session. Continuous trading is
// accepted before the open and while open; Closed is terminal.
type VenueState int

const (
	PreOpen VenueState = iota
	Open
	Closed
)

func (s VenueState) String() string {
	switch s {
	case PreOpen:
		return "pre-open"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// LastTrade is the most recent trade printed on a venue.
type LastTrade struct {
	Valid    bool
	Time     float64
	Price    int64
	Quantity int64
}

// Result is everything one exchange call produced. Messages and Tape are
// copies; mutating them has no effect on the exchange.
type Result struct {
	Order    common.Order // the order as accepted, with its exchange id
	Messages []common.Message
	Tape     []common.TapeEvent
	Summary  *common.TradeSummary
}

// MessagesFor returns the messages addressed to one participant.
func (r Result) MessagesFor(participant string) []common.Message {
	var out []common.Message
	for _, m := range r.Messages {
		if m.Participant == participant {
			out = append(out, m)
		}
	}
	return out
}

func ack(order common.Order) book.Response {
	return book.Response{Messages: []common.Message{{
		Participant: order.Participant,
		OrderID:     order.ID,
		Kind:        common.Ack,
		Fills:       []common.Fill{{Price: order.Price, Quantity: order.Quantity}},
	}}}
}

func reject(order common.Order) book.Response {
	return book.Response{Messages: []common.Message{{
		Participant: order.Participant,
		OrderID:     order.ID,
		Kind:        common.Fail,
	}}}
}

func cancelled(order common.Order) book.Response {
	return book.Response{Messages: []common.Message{{
		Participant: order.Participant,
		OrderID:     order.ID,
		Kind:        common.Cancelled,
	}}}
}
