package common

import (
	"fmt"
)

// Bounds is the system price range every priced order must fall within.
type Bounds struct {
	MinPrice int64
	MaxPrice int64
}

// DefaultBounds mirrors the classic 1..200 tick range used by the simulator.
var DefaultBounds = Bounds{MinPrice: 1, MaxPrice: 200}

// Contains reports whether price lies within the bounds.
func (b Bounds) Contains(price int64) bool {
	return price >= b.MinPrice && price <= b.MaxPrice
}

// Assignment is a customer's instruction handed to a trader. The trader
// works it by submitting orders until it is filled or withdrawn.
type Assignment struct {
	ID          int64   // Unique within a session
	Customer    string  // Customer identifier
	Participant string  // Trader the assignment was given to
	Side        Side    //
	Style       Style   //
	Price       int64   // Customer's limit price
	Quantity    int64   //
	Time        float64 // Simulated time the customer issued it
	Expiry      float64 // Zero when the assignment never expires
}

func NewAssignment(id int64, customer, participant string, side Side, style Style, price, qty int64, t, expiry float64) (Assignment, error) {
	a := Assignment{
		ID:          id,
		Customer:    customer,
		Participant: participant,
		Side:        side,
		Style:       style,
		Price:       price,
		Quantity:    qty,
		Time:        t,
		Expiry:      expiry,
	}
	if err := checkShape("new assignment", side, style, qty); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// Order is what a trader submits to the exchange. The exchange stamps ID on
// acceptance; until then it is zero.
type Order struct {
	ID          uint64   // Exchange-assigned, monotonically increasing
	Participant string   // Who owns this order
	Side        Side     // Book the order belongs to
	Style       Style    //
	Price       int64    // Limit price; ignored by market styles
	Quantity    int64    // Remaining quantity
	Time        float64  // Arrival time (simulated seconds)
	Expiry      float64  // Zero when the order never expires
	Assignment  int64    // Trader's reference back to its assignment
	Legs        []*Order // Child orders of OCO/OSO, nil otherwise
}

func NewOrder(participant string, side Side, style Style, price, qty int64, t float64) (Order, error) {
	o := Order{
		Participant: participant,
		Side:        side,
		Style:       style,
		Price:       price,
		Quantity:    qty,
		Time:        t,
	}
	if err := checkShape("new order", side, style, qty); err != nil {
		return Order{}, err
	}
	return o, nil
}

// NewCompound builds an OCO or OSO order from two limit legs. The compound
// inherits participant, side and time from the first leg.
func NewCompound(style Style, first, second Order) (Order, error) {
	if !style.IsCompound() {
		return Order{}, Contract("new compound", fmt.Errorf("%w: style %s", ErrUnknownStyle, style))
	}
	if first.Style != Limit || second.Style != Limit || first.Participant != second.Participant {
		return Order{}, Contract("new compound", ErrBadLegs)
	}
	return Order{
		Participant: first.Participant,
		Side:        first.Side,
		Style:       style,
		Price:       first.Price,
		Quantity:    first.Quantity,
		Time:        first.Time,
		Legs:        []*Order{&first, &second},
	}, nil
}

func checkShape(op string, side Side, style Style, qty int64) error {
	if side != Bid && side != Ask {
		return Contract(op, fmt.Errorf("%w: %d", ErrUnknownSide, int(side)))
	}
	if !style.Known() {
		return Contract(op, fmt.Errorf("%w: %d", ErrUnknownStyle, int(style)))
	}
	if qty <= 0 && !style.IsCancel() {
		return Contract(op, fmt.Errorf("%w: %d", ErrNonPositiveQuantity, qty))
	}
	return nil
}

// Validate checks the order against the system price bounds. Cancel styles
// only need a recognisable side.
func (o Order) Validate(bounds Bounds) error {
	if err := checkShape("validate order", o.Side, o.Style, o.Quantity); err != nil {
		return err
	}
	if o.Style.IsCancel() {
		return nil
	}
	if o.Style.Priced() && !bounds.Contains(o.Price) {
		return Contract("validate order", fmt.Errorf("%w: %d not in [%d, %d]",
			ErrPriceOutOfRange, o.Price, bounds.MinPrice, bounds.MaxPrice))
	}
	if o.Style.IsCompound() {
		if len(o.Legs) != 2 {
			return Contract("validate order", ErrBadLegs)
		}
		for _, leg := range o.Legs {
			if leg == nil || leg.Style != Limit || leg.Participant != o.Participant {
				return Contract("validate order", ErrBadLegs)
			}
			if err := leg.Validate(bounds); err != nil {
				return err
			}
		}
	}
	return nil
}

// Expired reports whether the order carries an expiry that has passed at t.
func (o Order) Expired(t float64) bool {
	return o.Expiry > 0 && t >= o.Expiry
}

// Clone returns a deep copy, so that callers never share legs with the
// exchange's own records.
func (o Order) Clone() Order {
	if o.Legs != nil {
		legs := make([]*Order, len(o.Legs))
		for i, leg := range o.Legs {
			if leg != nil {
				c := leg.Clone()
				legs[i] = &c
			}
		}
		o.Legs = legs
	}
	return o
}

func (o Order) String() string {
	return fmt.Sprintf("[%s %s %s P=%03d Q=%d T=%5.2f OID:%d Ref:%d]",
		o.Participant, o.Side, o.Style, o.Price, o.Quantity, o.Time, o.ID, o.Assignment)
}
