package common

import (
	"fmt"
	"strings"
)

type Side int

const (
	Bid Side = iota
	Ask
)

var sideTokens = map[Side]string{
	Bid: "Bid",
	Ask: "Ask",
}

func (s Side) String() string {
	if tok, ok := sideTokens[s]; ok {
		return tok
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Opposite returns the side an order of this side takes liquidity from.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// ParseSide accepts "Bid"/"Ask" and the "Buy"/"Sell" aliases, case-insensitively.
func ParseSide(token string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "bid", "buy":
		return Bid, nil
	case "ask", "sell":
		return Ask, nil
	}
	return 0, Contract("parse side", fmt.Errorf("%w: %q", ErrUnknownSide, token))
}

type Style int

const (
	// Limit orders rest on the book at their price unless they cross the
	// opposite side, in which case they are worked as immediate-or-cancel.
	Limit Style = iota
	// Market orders walk the opposite side regardless of price.
	Market
	// ImmediateOrCancel fills what it can at acceptable prices and drops
	// the remainder.
	ImmediateOrCancel
	// FillOrKill fills completely at acceptable prices or not at all.
	FillOrKill
	// AllOrNone is a fill-or-kill that waits at the exchange until it can
	// complete or its expiry passes.
	AllOrNone
	// GoodForDay is a limit order cancelled when the venue closes.
	GoodForDay
	LimitOnOpen
	MarketOnOpen
	LimitOnClose
	MarketOnClose
	// CancelOne removes a single resting order by id.
	CancelOne
	// CancelAll removes every resting order of the submitting participant.
	CancelAll
	// OneCancelsOther carries two limit legs; the first fill on one leg
	// cancels the other.
	OneCancelsOther
	// OneSendsOther carries two limit legs; the second is sent once the
	// first fully fills.
	OneSendsOther
)

var styleTokens = map[Style]string{
	Limit:             "LIM",
	Market:            "MKT",
	ImmediateOrCancel: "IOC",
	FillOrKill:        "FOK",
	AllOrNone:         "AON",
	GoodForDay:        "GFD",
	LimitOnOpen:       "LOO",
	MarketOnOpen:      "MOO",
	LimitOnClose:      "LOC",
	MarketOnClose:     "MOC",
	CancelOne:         "CAN",
	CancelAll:         "XXX",
	OneCancelsOther:   "OCO",
	OneSendsOther:     "OSO",
}

func (s Style) String() string {
	if tok, ok := styleTokens[s]; ok {
		return tok
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

// ParseStyle maps an exchange style token such as "LIM" or "FOK" to a Style.
func ParseStyle(token string) (Style, error) {
	tok := strings.ToUpper(strings.TrimSpace(token))
	for style, t := range styleTokens {
		if t == tok {
			return style, nil
		}
	}
	return 0, Contract("parse style", fmt.Errorf("%w: %q", ErrUnknownStyle, token))
}

// Known reports whether s is one of the defined styles.
func (s Style) Known() bool {
	_, ok := styleTokens[s]
	return ok
}

// Priced reports whether the style's price field is a binding limit.
func (s Style) Priced() bool {
	switch s {
	case Market, MarketOnOpen, MarketOnClose, CancelOne, CancelAll:
		return false
	}
	return true
}

// IsCancel reports whether the style removes orders rather than adding one.
func (s Style) IsCancel() bool {
	return s == CancelOne || s == CancelAll
}

// IsCompound reports whether the style carries child legs.
func (s Style) IsCompound() bool {
	return s == OneCancelsOther || s == OneSendsOther
}
