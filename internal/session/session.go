// Package session drives market sessions: traders receive customer
// assignments, quote on the exchange one at a time on a simulated clock, and
// the results are summarized per trader type.
package session

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"

	"bourse/internal/agent"
	"bourse/internal/common"
	"bourse/internal/config"
	"bourse/internal/engine"
	"bourse/internal/store"

	"github.com/rs/zerolog/log"
)

// Result is what one finished session reports.
type Result struct {
	ID        string
	Summaries []store.Summary
	Trades    int
	Tape      []common.TapeEvent
}

type Session struct {
	id      string
	cfg     *config.Config
	rng     *rand.Rand
	ex      *engine.Exchange
	traders map[string]agent.Trader
	ids     []string // sorted, for reproducible random picks
	sched   *Scheduler
}

// New sets up a session: an exchange and the trader population the
// configuration asks for.
func New(id string, cfg *config.Config, rng *rand.Rand) (*Session, error) {
	s := &Session{
		id:  id,
		cfg: cfg,
		rng: rng,
		ex: engine.New(engine.Config{
			ID:        cfg.Exchange.ID,
			BlockSize: cfg.Exchange.BlockSize,
			Bounds:    cfg.Exchange.Bounds(),
			TakerFee:  cfg.Exchange.TakerFee,
		}),
		traders: make(map[string]agent.Trader),
	}
	buyers, err := s.populate("B", cfg.Session.Buyers)
	if err != nil {
		return nil, err
	}
	sellers, err := s.populate("S", cfg.Session.Sellers)
	if err != nil {
		return nil, err
	}
	s.ids = slices.Sorted(maps.Keys(s.traders))
	s.sched = NewScheduler(cfg.Session, cfg.Exchange.Bounds(), rng, buyers, sellers)
	return s, nil
}

// populate creates one side's traders. The pack of types is shuffled before
// names are handed out, so a name says nothing about the strategy.
func (s *Session) populate(prefix string, specs []config.TraderSpec) ([]string, error) {
	var types []string
	for _, spec := range specs {
		for range spec.Count {
			types = append(types, spec.Type)
		}
	}
	s.rng.Shuffle(len(types), func(i, j int) { types[i], types[j] = types[j], types[i] })

	names := make([]string, len(types))
	for i, ttype := range types {
		name := fmt.Sprintf("%s%02d", prefix, i)
		tr, err := agent.New(ttype, name, s.cfg.Session.Start, s.rng)
		if err != nil {
			return nil, err
		}
		s.traders[name] = tr
		names[i] = name
	}
	return names, nil
}

func (s *Session) Exchange() *engine.Exchange { return s.ex }

func (s *Session) Trader(id string) agent.Trader { return s.traders[id] }

// Run plays the session to its end time. A contract error from the exchange
// or a trader aborts the session and is returned; so is cancellation of ctx.
func (s *Session) Run(ctx context.Context) (Result, error) {
	start, end := s.cfg.Session.Start, s.cfg.Session.End
	duration := end - start
	// Every trader can be asked once per simulated second.
	timestep := 1.0 / float64(len(s.traders))
	depth := s.cfg.Exchange.TapeDepth

	logger := log.With().Str("session", s.id).Logger()
	logger.Info().Int("traders", len(s.traders)).Float64("start", start).Float64("end", end).Msg("session starting")

	opened, err := s.ex.Open(start)
	if err != nil {
		return Result{}, err
	}
	if err := s.deliver(opened.Messages, start); err != nil {
		return Result{}, err
	}

	var last string
	for t := start; t < end; t += timestep {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if err := s.issue(t); err != nil {
			return Result{}, fmt.Errorf("session %s at t=%.2f: %w", s.id, t, err)
		}

		// Pick a trader at random, never the same one twice running.
		id := last
		for id == last {
			id = s.ids[s.rng.IntN(len(s.ids))]
		}
		last = id

		if err := s.step(t, (end-t)/duration, s.traders[id], depth); err != nil {
			logger.Error().Err(err).Float64("time", t).Str("trader", id).Msg("session aborted")
			return Result{}, err
		}
	}

	closed, err := s.ex.Close(end)
	if err != nil {
		return Result{}, err
	}
	if err := s.deliver(closed.Messages, end); err != nil {
		return Result{}, err
	}

	res := Result{
		ID:        s.id,
		Summaries: s.stats(end),
		Tape:      s.ex.Tape(),
	}
	for _, ev := range res.Tape {
		if ev.Kind == common.TradeEvent {
			res.Trades++
		}
	}
	logger.Info().Int("trades", res.Trades).Msg("session finished")
	return res, nil
}

// issue hands out due assignments. A trader that still has a quote live for
// its previous assignment has that quote cancelled.
func (s *Session) issue(t float64) error {
	due, err := s.sched.Due(t)
	if err != nil {
		return err
	}
	for _, a := range due {
		tr := s.traders[a.Participant]
		if !tr.AddAssignment(a) {
			continue
		}
		for _, quote := range tr.Quotes() {
			if err := s.cancel(t, tr, quote); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) cancel(t float64, tr agent.Trader, quote common.Order) error {
	res, err := s.ex.ProcessOrder(t, common.Order{
		ID:          quote.ID,
		Participant: tr.ID(),
		Side:        quote.Side,
		Style:       common.CancelOne,
	})
	if err != nil {
		return err
	}
	return s.deliver(res.Messages, t)
}

// step asks one trader for a quote, sends it to the exchange, and lets every
// trader see the result.
func (s *Session) step(t, remaining float64, tr agent.Trader, depth int) error {
	order, ok := tr.GetOrder(t, remaining, s.ex.PublishLOB(t, depth))
	if !ok {
		return nil
	}
	if err := checkQuote(tr, *order); err != nil {
		return err
	}

	// Traders keep one quote live: the new one replaces the oldest.
	if quotes := tr.Quotes(); len(quotes) > 0 {
		if err := s.cancel(t, tr, quotes[0]); err != nil {
			return err
		}
	}

	res, err := s.ex.ProcessOrder(t, *order)
	if err != nil {
		return err
	}
	tr.Submitted(res.Order)
	if err := s.deliver(res.Messages, t); err != nil {
		return err
	}

	lob := s.ex.PublishLOB(t, depth)
	for _, id := range s.ids {
		s.traders[id].Respond(t, lob, res.Summary)
	}
	return nil
}

// checkQuote rejects a quote that would trade through the customer's limit.
func checkQuote(tr agent.Trader, order common.Order) error {
	for _, a := range tr.Assignments() {
		if a.ID != order.Assignment {
			continue
		}
		if (order.Side == common.Bid && order.Price > a.Price) || (order.Side == common.Ask && order.Price < a.Price) {
			return common.Contract("quote "+tr.ID(), fmt.Errorf("%w: %s beyond customer limit %d",
				common.ErrPriceOutOfRange, order, a.Price))
		}
		return nil
	}
	return common.Contract("quote "+tr.ID(), fmt.Errorf("%w: assignment %d", common.ErrUnknownOrder, order.Assignment))
}

// deliver passes each message to the trader it is addressed to.
func (s *Session) deliver(msgs []common.Message, t float64) error {
	for _, m := range msgs {
		tr, ok := s.traders[m.Participant]
		if !ok {
			continue
		}
		if err := tr.Bookkeep(m, t); err != nil {
			return err
		}
	}
	return nil
}

// stats summarizes balances per trader type, with the closing best prices.
func (s *Session) stats(t float64) []store.Summary {
	byType := make(map[string]*store.Summary)
	for _, id := range s.ids {
		tr := s.traders[id]
		sum, ok := byType[tr.Type()]
		if !ok {
			sum = &store.Summary{Session: s.id, Time: t, Type: tr.Type()}
			byType[tr.Type()] = sum
		}
		sum.Traders++
		sum.Balance += tr.Balance()
	}

	lob := s.ex.PublishLOB(t, 0)
	out := make([]store.Summary, 0, len(byType))
	for _, sum := range byType {
		sum.BestBid, sum.BestAsk = lob.Bids.Best, lob.Asks.Best
		out = append(out, *sum)
	}
	slices.SortFunc(out, func(a, b store.Summary) int { return strings.Compare(a.Type, b.Type) })
	return out
}
