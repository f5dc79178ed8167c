// Package store persists session output for later analysis: the tape of
// every session and per-trader-type summaries. Nothing here is read back by
// the exchange.
package store

import (
	"fmt"

	"bourse/internal/common"
	"bourse/internal/config"

	"github.com/shopspring/decimal"
)

// TapeRecord is one tape event tagged with the session that produced it.
// Seq orders the records of a session.
type TapeRecord struct {
	Session string
	Seq     uint64
	common.TapeEvent
}

// Summary is the end-of-session result for one trader type.
type Summary struct {
	Session string
	Time    float64
	Type    string
	Traders int
	Balance int64 // summed over every trader of the type
	BestBid int64 // zero when the side was empty
	BestAsk int64
}

// Average returns the mean balance per trader of the type.
func (s Summary) Average() decimal.Decimal {
	if s.Traders == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(s.Balance).Div(decimal.NewFromInt(int64(s.Traders)))
}

// Sink receives session output. Implementations are safe for concurrent use
// by the trials of one run.
type Sink interface {
	WriteTape(session string, tape []common.TapeEvent) error
	WriteSummary(rows []Summary) error
	Close() error
}

// Records numbers a session's tape.
func Records(session string, tape []common.TapeEvent) []TapeRecord {
	out := make([]TapeRecord, len(tape))
	for i, ev := range tape {
		out[i] = TapeRecord{Session: session, Seq: uint64(i), TapeEvent: ev}
	}
	return out
}

// Open creates the sink selected by the configuration.
func Open(cfg config.Store) (Sink, error) {
	switch cfg.Backend {
	case "none", "":
		return Discard{}, nil
	case "csv":
		return OpenCSV(cfg.Path)
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "pebble":
		return OpenPebble(cfg.Path)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// Discard drops everything.
type Discard struct{}

func (Discard) WriteTape(string, []common.TapeEvent) error { return nil }

func (Discard) WriteSummary([]Summary) error { return nil }

func (Discard) Close() error { return nil }
