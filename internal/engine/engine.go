package engine

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"bourse/internal/book"
	"bourse/internal/common"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// This is the main matching engine: a lit venue and a dark venue for one
// instrument, the consolidated tape, and the participant ledger.

const (
	LitVenue  = "lit"
	DarkVenue = "dark"

	DefaultBlockSize = 300
)

type Config struct {
	ID        string
	BlockSize int64 // orders of at least this quantity go to the dark venue
	Bounds    common.Bounds
	TakerFee  int64 // charged per unit filled on the incoming order
}

func DefaultConfig() Config {
	return Config{
		ID:        "Exchange",
		BlockSize: DefaultBlockSize,
		Bounds:    common.DefaultBounds,
	}
}

type Exchange struct {
	cfg    Config
	lit    *OrderBook
	dark   *OrderBook
	tape   []common.TapeEvent
	ledger map[string]*LedgerEntry
	nextID uint64
}

func New(cfg Config) *Exchange {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.Bounds == (common.Bounds{}) {
		cfg.Bounds = common.DefaultBounds
	}
	return &Exchange{
		cfg:    cfg,
		lit:    NewOrderBook(LitVenue, cfg.Bounds, cfg.TakerFee),
		dark:   NewOrderBook(DarkVenue, cfg.Bounds, cfg.TakerFee),
		ledger: make(map[string]*LedgerEntry),
		nextID: 1,
	}
}

func (ex *Exchange) Config() Config { return ex.cfg }

// Venue returns the venue with the given id, or nil.
func (ex *Exchange) Venue(id string) *OrderBook {
	switch id {
	case LitVenue:
		return ex.lit
	case DarkVenue:
		return ex.dark
	}
	return nil
}

func (ex *Exchange) venues() []*OrderBook {
	return []*OrderBook{ex.lit, ex.dark}
}

// route picks the venue for a new order by its size.
func (ex *Exchange) route(order common.Order) *OrderBook {
	if order.Quantity >= ex.cfg.BlockSize {
		return ex.dark
	}
	return ex.lit
}

func (ex *Exchange) stamp(order *common.Order) {
	order.ID = ex.nextID
	ex.nextID++
	for _, leg := range order.Legs {
		leg.ID = ex.nextID
		leg.Participant = order.Participant
		ex.nextID++
	}
}

// ProcessOrder runs one order to completion. CAN orders carry the id of the
// order to cancel in ID; XXX cancels everything the participant has live on
// both venues. Any other order gets a fresh id and is routed by size.
//
// Market outcomes, including rejections, come back as messages. A returned
// error is always a contract violation and the caller should stop driving
// the exchange.
func (ex *Exchange) ProcessOrder(t float64, order common.Order) (Result, error) {
	if err := order.Validate(ex.cfg.Bounds); err != nil {
		return Result{}, err
	}
	order = order.Clone()
	order.Time = t
	ex.register(order.Participant, t)

	var (
		resp book.Response
		err  error
	)
	switch order.Style {
	case common.CancelOne:
		resp, err = ex.cancel(t, order)
	case common.CancelAll:
		for _, venue := range ex.venues() {
			r, cerr := venue.CancelAll(t, order.Participant)
			if cerr != nil {
				err = cerr
				break
			}
			resp.Merge(r)
		}
	default:
		ex.stamp(&order)
		venue := ex.route(order)
		resp, err = venue.Process(t, order)
		log.Debug().
			Str("venue", venue.ID()).
			Stringer("order", order).
			Int("trades", len(resp.Tape)).
			Msg("processed order")
	}
	if err != nil {
		log.Error().Err(err).Stringer("order", order).Msg("order rejected by contract")
		return Result{}, err
	}

	ex.tape = append(ex.tape, resp.Tape...)
	ex.charge(resp.Messages)

	return Result{
		Order:    order.Clone(),
		Messages: slices.Clone(resp.Messages),
		Tape:     slices.Clone(resp.Tape),
		Summary:  summarize(t, order, resp.Tape),
	}, nil
}

func (ex *Exchange) cancel(t float64, order common.Order) (book.Response, error) {
	for _, venue := range ex.venues() {
		if venue.Holds(order.ID) {
			return venue.Cancel(t, order.ID)
		}
	}
	return book.Response{}, common.Contract("cancel",
		fmt.Errorf("%w: %d from %s", common.ErrUnknownOrder, order.ID, order.Participant))
}

// Open opens both venues.
func (ex *Exchange) Open(t float64) (Result, error) {
	return ex.transition(t, (*OrderBook).Open)
}

// Close closes both venues.
func (ex *Exchange) Close(t float64) (Result, error) {
	return ex.transition(t, (*OrderBook).Close)
}

func (ex *Exchange) transition(t float64, step func(*OrderBook, float64) (book.Response, error)) (Result, error) {
	var resp book.Response
	var errs []error
	for _, venue := range ex.venues() {
		r, err := step(venue, t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		resp.Merge(r)
	}
	ex.tape = append(ex.tape, resp.Tape...)
	ex.charge(resp.Messages)
	if err := errors.Join(errs...); err != nil {
		return Result{}, err
	}
	log.Info().Float64("time", t).Int("events", len(resp.Tape)).Msg("venues transitioned")
	return Result{
		Messages: slices.Clone(resp.Messages),
		Tape:     slices.Clone(resp.Tape),
	}, nil
}

// Tape returns a copy of the consolidated tape of both venues.
func (ex *Exchange) Tape() []common.TapeEvent {
	return slices.Clone(ex.tape)
}

// Verify checks every venue's books and that no venue is crossed.
func (ex *Exchange) Verify() error {
	for _, venue := range ex.venues() {
		if err := venue.Verify(); err != nil {
			return err
		}
	}
	return nil
}

// Participants returns every registered participant id, sorted.
func (ex *Exchange) Participants() []string {
	return slices.Sorted(maps.Keys(ex.ledger))
}

// summarize collapses the trades the order took part in into one record.
// Compound orders count trades on either leg.
func summarize(t float64, order common.Order, tape []common.TapeEvent) *common.TradeSummary {
	ids := map[uint64]bool{order.ID: true}
	for _, leg := range order.Legs {
		ids[leg.ID] = true
	}

	var (
		qty      int64
		notional int64
		first    *common.TapeEvent
		single   = true
	)
	for i := range tape {
		ev := &tape[i]
		if ev.Kind != common.TradeEvent || !(ids[ev.SellID] || ids[ev.BuyID]) {
			continue
		}
		qty += ev.Quantity
		notional += ev.Price * ev.Quantity
		if first == nil {
			first = ev
		} else if ev.Seller != first.Seller || ev.Buyer != first.Buyer {
			single = false
		}
	}
	if first == nil {
		return nil
	}

	summary := &common.TradeSummary{
		Time:     t,
		Price:    decimal.NewFromInt(notional).Div(decimal.NewFromInt(qty)),
		Quantity: qty,
	}
	if single {
		summary.Seller, summary.Buyer = first.Seller, first.Buyer
	}
	return summary
}
