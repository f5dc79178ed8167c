package session

import (
	"fmt"
	"math"
	"math/rand/v2"

	"bourse/internal/common"
	"bourse/internal/config"
)

// Scheduler issues customer assignments to traders. Each replenishment
// cycle it draws one assignment per trader, with a limit price from the
// supply or demand schedule in force and an issue time spread over the
// cycle; assignments are handed over once their issue time has passed.
type Scheduler struct {
	cfg     config.Session
	bounds  common.Bounds
	rng     *rand.Rand
	buyers  []string
	sellers []string
	pending []common.Assignment
	nextID  int64
}

func NewScheduler(cfg config.Session, bounds common.Bounds, rng *rand.Rand, buyers, sellers []string) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		bounds:  bounds,
		rng:     rng,
		buyers:  buyers,
		sellers: sellers,
	}
}

// Pending returns the assignments drawn but not yet issued.
func (s *Scheduler) Pending() []common.Assignment {
	return s.pending
}

// Due returns the assignments to hand over at time t. When nothing is
// pending a new cycle is drawn starting at t, and nothing is due yet.
func (s *Scheduler) Due(t float64) ([]common.Assignment, error) {
	if len(s.pending) == 0 {
		demand, err := s.draw(t, common.Bid, s.buyers, s.cfg.Demand)
		if err != nil {
			return nil, err
		}
		supply, err := s.draw(t, common.Ask, s.sellers, s.cfg.Supply)
		if err != nil {
			return nil, err
		}
		s.pending = append(demand, supply...)
		return nil, nil
	}

	var due []common.Assignment
	kept := s.pending[:0]
	for _, a := range s.pending {
		if a.Time < t {
			due = append(due, a)
		} else {
			kept = append(kept, a)
		}
	}
	s.pending = kept
	return due, nil
}

func (s *Scheduler) draw(t float64, side common.Side, traders []string, scheds []config.Schedule) ([]common.Assignment, error) {
	sched, err := scheduleAt(t, scheds)
	if err != nil {
		return nil, err
	}
	times := s.issueTimes(len(traders))
	out := make([]common.Assignment, 0, len(traders))
	for i, name := range traders {
		price := s.orderPrice(i, len(traders), sched)
		qty := 1 + s.rng.Int64N(s.cfg.MaxQuantity)
		a, err := common.NewAssignment(s.nextID, "CUS", name, side, common.Limit, price, qty, t+times[i], 0)
		if err != nil {
			return nil, err
		}
		s.nextID++
		out = append(out, a)
	}
	return out, nil
}

// scheduleAt returns the first schedule whose time zone contains t.
func scheduleAt(t float64, scheds []config.Schedule) (config.Schedule, error) {
	for _, sched := range scheds {
		if sched.From <= t && t < sched.To {
			return sched, nil
		}
	}
	return config.Schedule{}, fmt.Errorf("time %.2f is not within any schedule", t)
}

func (s *Scheduler) clip(p int64) int64 {
	return min(max(p, s.bounds.MinPrice), s.bounds.MaxPrice)
}

// orderPrice gives the i-th of n traders its limit price. Fixed mode spreads
// prices evenly over the range, jittered adds up to half a step of noise and
// random draws uniformly from one of the ranges.
func (s *Scheduler) orderPrice(i, n int, sched config.Schedule) int64 {
	r := sched.Ranges[0]
	pmin, pmax := s.clip(min(r.Min, r.Max)), s.clip(max(r.Min, r.Max))
	var step float64
	if n > 1 {
		step = float64(pmax-pmin) / float64(n-1)
	}
	half := int64(math.Round(step / 2))

	var price int64
	switch sched.StepMode {
	case "jittered":
		price = pmin + int64(float64(i)*step)
		if half > 0 {
			price += s.rng.Int64N(2*half+1) - half
		}
	case "random":
		if len(sched.Ranges) > 1 {
			r = sched.Ranges[s.rng.IntN(len(sched.Ranges))]
			pmin, pmax = s.clip(min(r.Min, r.Max)), s.clip(max(r.Min, r.Max))
		}
		price = pmin + s.rng.Int64N(pmax-pmin+1)
	default:
		price = pmin + int64(float64(i)*step)
	}
	return s.clip(price)
}

// issueTimes spreads n issue times over one interval, then shuffles them.
// drip-poisson arrivals are rescaled so the last lands on the interval.
func (s *Scheduler) issueTimes(n int) []float64 {
	interval := s.cfg.Interval
	step := interval
	if n > 1 {
		step = interval / float64(n-1)
	}

	times := make([]float64, n)
	var arrival float64
	for i := range n {
		switch s.cfg.TimeMode {
		case "drip-fixed":
			arrival = float64(i) * step
		case "drip-jitter":
			arrival = float64(i)*step + step*s.rng.Float64()
		case "drip-poisson":
			arrival += s.rng.ExpFloat64() * interval / float64(n)
		default:
			arrival = interval
		}
		times[i] = arrival
	}
	if s.cfg.TimeMode == "drip-poisson" && arrival > 0 && arrival != interval {
		for i := range times {
			times[i] = interval * times[i] / arrival
		}
	}

	s.rng.Shuffle(n, func(i, j int) { times[i], times[j] = times[j], times[i] })
	return times
}
