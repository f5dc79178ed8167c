package engine

import (
	"slices"

	"bourse/internal/book"
	"bourse/internal/common"
)

type compoundState int

const (
	pending compoundState = iota
	firstLegActive
	secondLegActive
	resolved
	done
)

// compound tracks an OCO or OSO order while the venue still has something to
// do for it. Its legs are ordinary limit orders on the book.
type compound struct {
	parent common.Order
	first  common.Order
	second common.Order
	state  compoundState
}

func (c *compound) finished() bool {
	return c.state == resolved || c.state == done
}

// live reports whether either leg still rests on the venue. A finished
// compound is kept while it does, so the parent id can still cancel it.
func (ob *OrderBook) live(c *compound) bool {
	return ob.side(c.first.Side).Has(c.first.ID) || ob.side(c.second.Side).Has(c.second.ID)
}

// pruneCompounds drops compounds that are finished and have nothing left on
// the book.
func (ob *OrderBook) pruneCompounds() {
	ob.compounds = slices.DeleteFunc(ob.compounds, func(c *compound) bool {
		return c.finished() && !ob.live(c)
	})
}

// processCompound acknowledges the parent and submits the first leg.
//
// OSO: the second leg is submitted once the first fills completely, now or
// later. A first leg that only partly fills or fails ends the compound.
//
// OCO: if the first leg rests, the second is submitted too. From then on a
// trade on either leg cancels the other. A first leg that trades on arrival
// means the second is never sent.
func (ob *OrderBook) processCompound(t float64, order common.Order) (book.Response, error) {
	c := &compound{
		parent: order,
		first:  *order.Legs[0],
		second: *order.Legs[1],
	}
	c.first.Time, c.second.Time = t, t

	resp := ack(order)
	first := ob.processLimit(t, c.first)
	resp.Merge(first)
	msg, _ := first.MessageFor(c.first.ID)

	switch order.Style {
	case common.OneSendsOther:
		switch msg.Kind {
		case common.Filled:
			resp.Merge(ob.processLimit(t, c.second))
			c.state = done
		case common.Ack:
			c.state = firstLegActive
		default:
			c.state = resolved
		}

	case common.OneCancelsOther:
		if msg.Kind != common.Ack {
			c.state = resolved
			break
		}
		second := ob.processLimit(t, c.second)
		resp.Merge(second)
		msg2, _ := second.MessageFor(c.second.ID)
		switch msg2.Kind {
		case common.Ack:
			c.state = secondLegActive
		case common.Filled, common.Part:
			r, err := ob.cancelLeg(t, c.first)
			if err != nil {
				return book.Response{}, err
			}
			resp.Merge(r)
			c.state = done
		default:
			// Second leg found nothing at its limit; the first rests alone.
			c.state = resolved
		}
	}

	if !c.finished() || ob.live(c) {
		ob.compounds = append(ob.compounds, c)
	}
	return resp, nil
}

// settleCompounds lets every active compound react to the messages in resp.
// Whatever the reactions produce is fed back in until nothing new happens.
func (ob *OrderBook) settleCompounds(t float64, resp book.Response) (book.Response, error) {
	var out book.Response
	incoming := resp
	for len(ob.compounds) > 0 && !incoming.Empty() {
		var next book.Response
		for _, c := range ob.compounds {
			if c.finished() {
				continue
			}
			r, err := ob.react(t, c, incoming)
			if err != nil {
				return book.Response{}, err
			}
			next.Merge(r)
		}
		ob.pruneCompounds()
		out.Merge(next)
		incoming = next
	}
	return out, nil
}

func (ob *OrderBook) react(t float64, c *compound, resp book.Response) (book.Response, error) {
	var out book.Response
	firstMsg, firstSeen := resp.MessageFor(c.first.ID)
	secondMsg, secondSeen := resp.MessageFor(c.second.ID)

	switch c.state {
	case firstLegActive:
		if !firstSeen {
			break
		}
		switch firstMsg.Kind {
		case common.Filled:
			second := c.second
			second.Time = t
			out.Merge(ob.processLimit(t, second))
			c.state = done
		case common.Cancelled, common.Fail:
			c.state = done
		}

	case secondLegActive:
		switch {
		case firstSeen && traded(firstMsg):
			r, err := ob.cancelLeg(t, c.second)
			if err != nil {
				return book.Response{}, err
			}
			out.Merge(r)
			c.state = done
		case secondSeen && traded(secondMsg):
			r, err := ob.cancelLeg(t, c.first)
			if err != nil {
				return book.Response{}, err
			}
			out.Merge(r)
			c.state = done
		case firstSeen && firstMsg.Kind == common.Cancelled,
			secondSeen && secondMsg.Kind == common.Cancelled:
			c.state = done
		}
	}
	return out, nil
}

func traded(m common.Message) bool {
	return m.Kind == common.Filled || m.Kind == common.Part
}

// cancelLeg pulls a leg off the book if it is still resting there.
func (ob *OrderBook) cancelLeg(t float64, leg common.Order) (book.Response, error) {
	side := ob.side(leg.Side)
	if !side.Has(leg.ID) {
		return book.Response{}, nil
	}
	_, resp, err := side.Cancel(t, leg.ID, ob.id)
	return resp, err
}

// cancelCompound withdraws a compound by its parent id: whatever legs still
// rest come off the book and the second leg of an OSO is never sent.
func (ob *OrderBook) cancelCompound(t float64, c *compound) (book.Response, error) {
	var resp book.Response
	for _, leg := range []common.Order{c.first, c.second} {
		r, err := ob.cancelLeg(t, leg)
		if err != nil {
			return book.Response{}, err
		}
		resp.Merge(r)
	}
	c.state = done
	ob.pruneCompounds()
	resp.Merge(cancelled(c.parent))
	return resp, nil
}

func (ob *OrderBook) compoundByParent(id uint64) *compound {
	for _, c := range ob.compounds {
		if c.parent.ID == id && (!c.finished() || ob.live(c)) {
			return c
		}
	}
	return nil
}
