package engine

import (
	"fmt"
	"slices"

	"bourse/internal/book"
	"bourse/internal/common"
)

// OrderBook is one venue: a bid side, an ask side and the venue's own tape.
// It also holds the orders that wait at the venue without resting on the
// book: on-open/on-close queues, parked all-or-none orders and compound
// orders whose legs are still being worked.
type OrderBook struct {
	id    string
	state VenueState

	// Each side's price levels are sorted best first, orders within a
	// level by arrival.
	Bids *book.SideBook
	Asks *book.SideBook

	tape []common.TapeEvent
	last LastTrade

	onOpen    []common.Order
	onClose   []common.Order
	parked    []common.Order // AON orders waiting for enough liquidity
	compounds []*compound
}

func NewOrderBook(id string, bounds common.Bounds, takerFee int64) *OrderBook {
	bids := book.New(common.Bid, bounds.MinPrice)
	asks := book.New(common.Ask, bounds.MaxPrice)
	bids.SetTakerFee(takerFee)
	asks.SetTakerFee(takerFee)
	return &OrderBook{
		id:   id,
		Bids: bids,
		Asks: asks,
	}
}

func (ob *OrderBook) ID() string { return ob.id }

func (ob *OrderBook) State() VenueState { return ob.state }

func (ob *OrderBook) LastTrade() LastTrade { return ob.last }

// Tape returns a copy of the venue's local tape.
func (ob *OrderBook) Tape() []common.TapeEvent {
	return slices.Clone(ob.tape)
}

func (ob *OrderBook) side(s common.Side) *book.SideBook {
	if s == common.Bid {
		return ob.Bids
	}
	return ob.Asks
}

// Process dispatches an order that the exchange has already stamped with an
// id. Cancellations go through Cancel and CancelAll instead.
//
// After the order itself has been worked, parked AON orders get another try
// at the liquidity it may have added, and compound orders react to any fills
// on their legs.
func (ob *OrderBook) Process(t float64, order common.Order) (book.Response, error) {
	if ob.state == Closed {
		return reject(order), nil
	}

	var (
		resp book.Response
		err  error
	)
	switch order.Style {
	case common.Limit, common.GoodForDay:
		resp = ob.processLimit(t, order)
	case common.Market, common.ImmediateOrCancel, common.FillOrKill:
		resp = ob.take(t, order)
	case common.AllOrNone:
		resp = ob.processAllOrNone(t, order)
	case common.LimitOnOpen, common.MarketOnOpen, common.LimitOnClose, common.MarketOnClose:
		resp = ob.processPending(order)
	case common.OneCancelsOther, common.OneSendsOther:
		resp, err = ob.processCompound(t, order)
	case common.CancelOne, common.CancelAll:
		err = common.Contract("venue process", fmt.Errorf("%w: %s must be routed as a cancellation",
			common.ErrUnknownStyle, order.Style))
	default:
		err = common.Contract("venue process", fmt.Errorf("%w: %d", common.ErrUnknownStyle, int(order.Style)))
	}
	if err != nil {
		return book.Response{}, err
	}

	resp.Merge(ob.retryParked(t, order.ID))
	follow, err := ob.settleCompounds(t, resp)
	if err != nil {
		return book.Response{}, err
	}
	resp.Merge(follow)

	ob.record(resp.Tape)
	return resp, nil
}

// crosses reports whether a limit price would trade immediately against the
// opposite side's best price.
func (ob *OrderBook) crosses(order common.Order) bool {
	best, ok := ob.side(order.Side.Opposite()).Best()
	if !ok {
		return false
	}
	if order.Side == common.Bid {
		return order.Price >= best.Price
	}
	return order.Price <= best.Price
}

// processLimit rests LIM and GFD orders. A limit that crosses the spread is
// worked as an immediate-or-cancel at its limit instead.
func (ob *OrderBook) processLimit(t float64, order common.Order) book.Response {
	if ob.crosses(order) {
		ioc := order
		ioc.Style = common.ImmediateOrCancel
		return ob.take(t, ioc)
	}
	ob.side(order.Side).Add(order)
	return ack(order)
}

// take sends a liquidity-taking order to the top of the opposite side.
func (ob *OrderBook) take(t float64, order common.Order) book.Response {
	return ob.side(order.Side.Opposite()).Take(t, order, ob.id)
}

// processAllOrNone works an AON like a FOK. If it fails before its expiry it
// is parked, to be retried as later orders arrive. An AON without an expiry
// stays parked until it fills, is cancelled or the venue closes.
func (ob *OrderBook) processAllOrNone(t float64, order common.Order) book.Response {
	resp := ob.take(t, order)
	msg, ok := resp.MessageFor(order.ID)
	if ok && msg.Kind == common.Fail && !order.Expired(t) {
		ob.parked = append(ob.parked, order)
		return ack(order)
	}
	return resp
}

// retryParked gives every parked AON, in arrival order, another attempt.
// Expired ones are dropped with a FAIL to their owner and nothing on the
// tape.
func (ob *OrderBook) retryParked(t float64, skip uint64) book.Response {
	var resp book.Response
	if len(ob.parked) == 0 {
		return resp
	}
	kept := ob.parked[:0]
	for _, order := range ob.parked {
		if order.ID == skip {
			kept = append(kept, order)
			continue
		}
		if order.Expired(t) {
			resp.Merge(reject(order))
			continue
		}
		attempt := ob.take(t, order)
		if msg, ok := attempt.MessageFor(order.ID); ok && msg.Kind == common.Fail {
			kept = append(kept, order)
			continue
		}
		resp.Merge(attempt)
	}
	clear(ob.parked[len(kept):])
	ob.parked = kept
	return resp
}

// processPending queues LOO/MOO and LOC/MOC orders for the venue's open or
// close. On-open orders arriving after the open are rejected.
func (ob *OrderBook) processPending(order common.Order) book.Response {
	switch order.Style {
	case common.LimitOnOpen, common.MarketOnOpen:
		if ob.state != PreOpen {
			return reject(order)
		}
		ob.onOpen = append(ob.onOpen, order)
	default:
		ob.onClose = append(ob.onClose, order)
	}
	return ack(order)
}

// Open moves the venue from pre-open to open, executing the on-open queue in
// arrival order: LOO as limit orders, MOO as market orders.
func (ob *OrderBook) Open(t float64) (book.Response, error) {
	if ob.state != PreOpen {
		return book.Response{}, common.Contract("open "+ob.id,
			fmt.Errorf("%w: venue is %s", common.ErrVenueState, ob.state))
	}
	ob.state = Open

	var resp book.Response
	queue := ob.onOpen
	ob.onOpen = nil
	for _, order := range queue {
		resp.Merge(ob.drain(t, order))
	}
	resp.Merge(ob.retryParked(t, 0))
	follow, err := ob.settleCompounds(t, resp)
	if err != nil {
		return book.Response{}, err
	}
	resp.Merge(follow)

	ob.record(resp.Tape)
	return resp, nil
}

// Close ends the venue's session: the on-close queue executes in arrival
// order, then every GFD order still on the book is cancelled. Orders that
// were waiting for a later event are failed back to their owners.
func (ob *OrderBook) Close(t float64) (book.Response, error) {
	if ob.state == Closed {
		return book.Response{}, common.Contract("close "+ob.id,
			fmt.Errorf("%w: venue is already %s", common.ErrVenueState, ob.state))
	}

	var resp book.Response
	queue := ob.onClose
	ob.onClose = nil
	for _, order := range queue {
		resp.Merge(ob.drain(t, order))
	}
	follow, err := ob.settleCompounds(t, resp)
	if err != nil {
		return book.Response{}, err
	}
	resp.Merge(follow)

	// GFD orders assume the close is the end of the day.
	for _, side := range []*book.SideBook{ob.Bids, ob.Asks} {
		for _, order := range side.Orders("") {
			if order.Style != common.GoodForDay {
				continue
			}
			_, cancelResp, err := side.Cancel(t, order.ID, ob.id)
			if err != nil {
				return book.Response{}, err
			}
			resp.Merge(cancelResp)
		}
	}

	for _, order := range ob.onOpen {
		resp.Merge(reject(order))
	}
	for _, order := range ob.parked {
		resp.Merge(reject(order))
	}
	// Nothing trades after the close, but legs left resting can still be
	// cancelled through their parent.
	for _, c := range ob.compounds {
		c.state = resolved
	}
	ob.pruneCompounds()
	ob.onOpen, ob.parked = nil, nil
	ob.state = Closed

	ob.record(resp.Tape)
	return resp, nil
}

// drain executes one order from an open/close queue.
func (ob *OrderBook) drain(t float64, order common.Order) book.Response {
	switch order.Style {
	case common.LimitOnOpen, common.LimitOnClose:
		order.Style = common.Limit
		return ob.processLimit(t, order)
	default:
		order.Style = common.Market
		return ob.take(t, order)
	}
}

// Holds reports whether an order with this id is live anywhere on the venue.
func (ob *OrderBook) Holds(id uint64) bool {
	if ob.Bids.Has(id) || ob.Asks.Has(id) {
		return true
	}
	if ob.compoundByParent(id) != nil {
		return true
	}
	return indexOf(ob.parked, id) >= 0 || indexOf(ob.onOpen, id) >= 0 || indexOf(ob.onClose, id) >= 0
}

// Cancel removes one order by id. Orders resting on the book leave a
// cancellation on the tape; queued and parked orders only notify their
// owner. Cancelling an id the venue does not hold is a contract violation.
func (ob *OrderBook) Cancel(t float64, id uint64) (book.Response, error) {
	var (
		resp book.Response
		err  error
	)
	switch {
	case ob.Bids.Has(id):
		_, resp, err = ob.Bids.Cancel(t, id, ob.id)
	case ob.Asks.Has(id):
		_, resp, err = ob.Asks.Cancel(t, id, ob.id)
	case ob.compoundByParent(id) != nil:
		resp, err = ob.cancelCompound(t, ob.compoundByParent(id))
	default:
		var ok bool
		for _, list := range []*[]common.Order{&ob.parked, &ob.onOpen, &ob.onClose} {
			var order common.Order
			if order, ok = extract(list, id); ok {
				resp = cancelled(order)
				break
			}
		}
		if !ok {
			err = common.Contract("cancel", fmt.Errorf("%w: %d on %s", common.ErrUnknownOrder, id, ob.id))
		}
	}
	if err != nil {
		return book.Response{}, err
	}

	follow, err := ob.settleCompounds(t, resp)
	if err != nil {
		return book.Response{}, err
	}
	resp.Merge(follow)

	ob.record(resp.Tape)
	return resp, nil
}

// CancelAll removes every order the participant has live on this venue.
func (ob *OrderBook) CancelAll(t float64, participant string) (book.Response, error) {
	var ids []uint64
	for _, side := range []*book.SideBook{ob.Bids, ob.Asks} {
		for _, order := range side.Orders(participant) {
			ids = append(ids, order.ID)
		}
	}
	for _, list := range [][]common.Order{ob.parked, ob.onOpen, ob.onClose} {
		for _, order := range list {
			if order.Participant == participant {
				ids = append(ids, order.ID)
			}
		}
	}

	var resp book.Response
	for _, id := range ids {
		// A compound reacting to an earlier cancellation may already have
		// taken this one off.
		if !ob.Holds(id) {
			continue
		}
		r, err := ob.Cancel(t, id)
		if err != nil {
			return book.Response{}, err
		}
		resp.Merge(r)
	}
	return resp, nil
}

// record appends tape events to the venue tape and tracks the last trade.
func (ob *OrderBook) record(events []common.TapeEvent) {
	for _, ev := range events {
		ob.tape = append(ob.tape, ev)
		if ev.Kind == common.TradeEvent {
			ob.last = LastTrade{Valid: true, Time: ev.Time, Price: ev.Price, Quantity: ev.Quantity}
		}
	}
}

// Verify checks both sides' structure and that the venue is not crossed.
func (ob *OrderBook) Verify() error {
	if err := ob.Bids.Verify(); err != nil {
		return fmt.Errorf("%s: %w", ob.id, err)
	}
	if err := ob.Asks.Verify(); err != nil {
		return fmt.Errorf("%s: %w", ob.id, err)
	}
	bid, bidOk := ob.Bids.Best()
	ask, askOk := ob.Asks.Best()
	if bidOk && askOk && bid.Price > ask.Price {
		return fmt.Errorf("%s crossed: best bid %d > best ask %d", ob.id, bid.Price, ask.Price)
	}
	return nil
}

func indexOf(list []common.Order, id uint64) int {
	return slices.IndexFunc(list, func(o common.Order) bool { return o.ID == id })
}

func extract(list *[]common.Order, id uint64) (common.Order, bool) {
	i := indexOf(*list, id)
	if i < 0 {
		return common.Order{}, false
	}
	order := (*list)[i]
	*list = slices.Delete(*list, i, i+1)
	return order, true
}
