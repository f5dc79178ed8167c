package store

import (
	"bytes"
	"fmt"

	"bourse/internal/common"

	"github.com/cockroachdb/pebble"
)

// Pebble keeps output in a pebble key-value store:
//
//	tape/<session>/<seq>     encoded tape event, seq zero-padded so keys sort
//	summary/<session>/<type> encoded summary of one trader type
type Pebble struct {
	db *pebble.DB
}

func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Pebble{db: db}, nil
}

func tapeKey(session string, seq uint64) []byte {
	return fmt.Appendf(nil, "tape/%s/%020d", session, seq)
}

func summaryKey(session, ttype string) []byte {
	return fmt.Appendf(nil, "summary/%s/%s", session, ttype)
}

// prefixBounds returns iterator bounds covering every key with the prefix.
func prefixBounds(prefix string) *pebble.IterOptions {
	upper := []byte(prefix)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: []byte(prefix), UpperBound: upper}
}

// WriteTape stores a session's tape in one batch.
func (p *Pebble) WriteTape(session string, tape []common.TapeEvent) error {
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, r := range Records(session, tape) {
		val, err := EncodeEvent(r.TapeEvent)
		if err != nil {
			return fmt.Errorf("encode %s/%d: %w", session, r.Seq, err)
		}
		if err := batch.Set(tapeKey(session, r.Seq), val, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (p *Pebble) WriteSummary(rows []Summary) error {
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, r := range rows {
		if err := batch.Set(summaryKey(r.Session, r.Type), encodeSummary(r), nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// Tape scans one session's tape in sequence order.
func (p *Pebble) Tape(session string) ([]common.TapeEvent, error) {
	iter, err := p.db.NewIter(prefixBounds("tape/" + session + "/"))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []common.TapeEvent
	for iter.First(); iter.Valid(); iter.Next() {
		ev, err := DecodeEvent(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		out = append(out, ev)
	}
	return out, iter.Error()
}

// Summary returns the stored summary of one trader type.
func (p *Pebble) Summary(session, ttype string) (Summary, error) {
	val, closer, err := p.db.Get(summaryKey(session, ttype))
	if err != nil {
		return Summary{}, err
	}
	defer closer.Close()
	return decodeSummary(session, ttype, bytes.Clone(val))
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
