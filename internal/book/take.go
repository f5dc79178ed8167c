package book

import (
	"bourse/internal/common"
)

// Response gathers what one book operation produced: messages for the
// traders involved and events for the tape.
type Response struct {
	Messages []common.Message
	Tape     []common.TapeEvent
}

// Merge appends other's messages and tape events to r.
func (r *Response) Merge(other Response) {
	r.Messages = append(r.Messages, other.Messages...)
	r.Tape = append(r.Tape, other.Tape...)
}

// Empty reports whether nothing was produced.
func (r Response) Empty() bool {
	return len(r.Messages) == 0 && len(r.Tape) == 0
}

// MessageFor returns the first message addressed to the given order id.
func (r Response) MessageFor(id uint64) (common.Message, bool) {
	for _, m := range r.Messages {
		if m.OrderID == id {
			return m, true
		}
	}
	return common.Message{}, false
}

// Take consumes resting liquidity from this side to satisfy an incoming
// order from the opposite side. Trades print at the resting order's price
// and, within a level, the earliest arrival is consumed first.
//
// FOK and AON orders are checked against the depth available at their limit
// before anything is touched, so they either fill completely or leave the
// book unchanged. IOC needs some depth at its limit. MKT ignores price.
func (b *SideBook) Take(t float64, order common.Order, venue string) Response {
	var resp Response

	// Initial checks: FAIL if there is no hope of executing this order.
	if b.levels.Len() == 0 {
		resp.Messages = append(resp.Messages, failure(order))
		return resp
	}
	switch order.Style {
	case common.FillOrKill, common.AllOrNone:
		if b.Depth(order.Price) < order.Quantity {
			resp.Messages = append(resp.Messages, failure(order))
			return resp
		}
	case common.ImmediateOrCancel:
		if b.Depth(order.Price) < 1 {
			resp.Messages = append(resp.Messages, failure(order))
			return resp
		}
	}

	priced := order.Style.Priced()
	remaining := order.Quantity
	var (
		fills   []common.Fill
		resting []common.Message
	)

	// Walk the book from the best level while the order has quantity left.
	for remaining > 0 {
		level, ok := b.levels.MinMut()
		if !ok {
			break
		}
		if priced && !b.acceptable(level.Price, order.Price) {
			break
		}

		maker := level.front()
		qty := min(remaining, maker.Quantity)
		fill := common.Fill{Price: level.Price, Quantity: qty}
		fills = append(fills, fill)
		resp.Tape = append(resp.Tape, b.trade(t, venue, &order, maker, fill))

		maker.Quantity -= qty
		level.Quantity -= qty
		remaining -= qty

		if maker.Quantity == 0 {
			// The resting order is fully consumed: delete it from the level,
			// and the level from the tree once it is empty.
			level.popFront()
			delete(b.orders, maker.ID)
			if level.empty() {
				b.levels.Delete(level)
			}
			resting = append(resting, common.Message{
				Participant: maker.Participant,
				OrderID:     maker.ID,
				Kind:        common.Filled,
				Fills:       []common.Fill{fill},
			})
		} else {
			revised := maker.Clone()
			resting = append(resting, common.Message{
				Participant: maker.Participant,
				OrderID:     maker.ID,
				Kind:        common.Part,
				Fills:       []common.Fill{fill},
				Revised:     &revised,
			})
		}
	}

	filled := order.Quantity - remaining
	taker := common.Message{
		Participant: order.Participant,
		OrderID:     order.ID,
		Fills:       fills,
		Fee:         b.takerFee * filled,
	}
	switch {
	case remaining == 0:
		taker.Kind = common.Filled
	case filled == 0:
		taker = failure(order)
	default:
		// Ran out of usable book: report what the exchange retains of the order.
		revised := order.Clone()
		revised.Quantity = remaining
		taker.Kind = common.Part
		taker.Revised = &revised
	}
	resp.Messages = append(append(resp.Messages, taker), resting...)
	return resp
}

func (b *SideBook) trade(t float64, venue string, taker, maker *common.Order, fill common.Fill) common.TapeEvent {
	ev := common.TapeEvent{
		Kind:     common.TradeEvent,
		Venue:    venue,
		Time:     t,
		Price:    fill.Price,
		Quantity: fill.Quantity,
	}
	if b.side == common.Bid {
		// Incoming ask hits a resting bid.
		ev.Seller, ev.SellID = taker.Participant, taker.ID
		ev.Buyer, ev.BuyID = maker.Participant, maker.ID
	} else {
		ev.Seller, ev.SellID = maker.Participant, maker.ID
		ev.Buyer, ev.BuyID = taker.Participant, taker.ID
	}
	return ev
}

func failure(order common.Order) common.Message {
	return common.Message{
		Participant: order.Participant,
		OrderID:     order.ID,
		Kind:        common.Fail,
	}
}
