package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"bourse/internal/common"
)

const (
	TapeFile    = "tape.csv"
	SummaryFile = "summary.csv"
)

var (
	tapeHeader    = []string{"session", "venue", "kind", "time", "price", "qty", "seller", "buyer", "order_id"}
	summaryHeader = []string{"session", "time", "type", "balance", "traders", "average", "best_bid", "best_ask"}
)

// CSV writes the tape and the summaries as delimited text, one file each,
// under a directory.
type CSV struct {
	mu      sync.Mutex
	files   []*os.File
	tape    *csv.Writer
	summary *csv.Writer
}

func OpenCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	s := &CSV{}
	var err error
	if s.tape, err = s.create(filepath.Join(dir, TapeFile), tapeHeader); err != nil {
		s.Close()
		return nil, err
	}
	if s.summary, err = s.create(filepath.Join(dir, SummaryFile), summaryHeader); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *CSV) create(path string, header []string) (*csv.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s.files = append(s.files, f)
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *CSV) WriteTape(session string, tape []common.TapeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range tape {
		id := ev.OrderID
		if ev.Kind == common.TradeEvent {
			id = 0
		}
		row := []string{
			session,
			ev.Venue,
			ev.Kind.String(),
			strconv.FormatFloat(ev.Time, 'f', 3, 64),
			strconv.FormatInt(ev.Price, 10),
			strconv.FormatInt(ev.Quantity, 10),
			ev.Seller,
			ev.Buyer,
			strconv.FormatUint(id, 10),
		}
		if err := s.tape.Write(row); err != nil {
			return err
		}
	}
	s.tape.Flush()
	return s.tape.Error()
}

func (s *CSV) WriteSummary(rows []Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		row := []string{
			r.Session,
			strconv.FormatFloat(r.Time, 'f', 0, 64),
			r.Type,
			strconv.FormatInt(r.Balance, 10),
			strconv.Itoa(r.Traders),
			r.Average().StringFixed(6),
			priceOrNone(r.BestBid),
			priceOrNone(r.BestAsk),
		}
		if err := s.summary.Write(row); err != nil {
			return err
		}
	}
	s.summary.Flush()
	return s.summary.Error()
}

func priceOrNone(p int64) string {
	if p == 0 {
		return "N"
	}
	return strconv.FormatInt(p, 10)
}

func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, w := range []*csv.Writer{s.tape, s.summary} {
		if w != nil {
			w.Flush()
		}
	}
	for _, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.files = nil
	return first
}
