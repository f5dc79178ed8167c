package engine

import (
	"bourse/internal/common"

	"github.com/rs/zerolog/log"
)

// LedgerEntry is the exchange's record of one participant.
type LedgerEntry struct {
	Participant string
	Registered  float64 // time of the participant's first order
	Balance     int64   // accumulated fees
	Orders      int     // orders and cancellations submitted
}

// register creates the ledger entry on a participant's first order.
func (ex *Exchange) register(participant string, t float64) {
	entry, ok := ex.ledger[participant]
	if !ok {
		entry = &LedgerEntry{Participant: participant, Registered: t}
		ex.ledger[participant] = entry
		log.Debug().Str("participant", participant).Float64("time", t).Msg("registered participant")
	}
	entry.Orders++
}

// charge adds the fee on each message to the balance of the participant the
// message is addressed to. A parked AON filled by someone else's order is
// charged to its own owner.
func (ex *Exchange) charge(messages []common.Message) {
	for _, m := range messages {
		if m.Fee == 0 {
			continue
		}
		if entry, ok := ex.ledger[m.Participant]; ok {
			entry.Balance += m.Fee
		}
	}
}

// Ledger returns a copy of the participant's ledger entry.
func (ex *Exchange) Ledger(participant string) (LedgerEntry, bool) {
	entry, ok := ex.ledger[participant]
	if !ok {
		return LedgerEntry{}, false
	}
	return *entry, true
}
