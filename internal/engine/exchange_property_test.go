package engine_test

import (
	"testing"

	"bourse/internal/common"
	"bourse/internal/engine"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func liveIDs(ex *engine.Exchange) []uint64 {
	var ids []uint64
	for _, id := range []string{engine.LitVenue, engine.DarkVenue} {
		venue := ex.Venue(id)
		for _, o := range venue.Bids.Orders("") {
			ids = append(ids, o.ID)
		}
		for _, o := range venue.Asks.Orders("") {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Random order flow never leaves a venue crossed or structurally broken, and
// every trade on the tape is accounted for by some message fill.
func TestProperty_ExchangeNeverCrosses(t *testing.T) {
	styles := []common.Style{
		common.Limit, common.Limit, common.Limit, common.GoodForDay,
		common.Market, common.ImmediateOrCancel, common.FillOrKill, common.AllOrNone,
	}
	rapid.Check(t, func(rt *rapid.T) {
		ex := engine.New(engine.DefaultConfig())
		steps := rapid.IntRange(1, 80).Draw(rt, "steps")
		for i := range steps {
			at := float64(i)
			if ids := liveIDs(ex); len(ids) > 0 && rapid.IntRange(0, 9).Draw(rt, "cancel") == 0 {
				id := rapid.SampledFrom(ids).Draw(rt, "id")
				_, err := ex.ProcessOrder(at, common.Order{ID: id, Participant: "X", Style: common.CancelOne})
				require.NoError(rt, err)
				require.NoError(rt, ex.Verify())
				continue
			}

			order := common.Order{
				Participant: rapid.SampledFrom([]string{"A", "B", "C"}).Draw(rt, "who"),
				Side:        rapid.SampledFrom([]common.Side{common.Bid, common.Ask}).Draw(rt, "side"),
				Style:       rapid.SampledFrom(styles).Draw(rt, "style"),
				Price:       rapid.Int64Range(90, 110).Draw(rt, "price"),
				Quantity:    rapid.SampledFrom([]int64{1, 2, 5, 10, 300, 350}).Draw(rt, "qty"),
				Expiry:      at + float64(rapid.IntRange(0, 5).Draw(rt, "ttl")),
			}
			res, err := ex.ProcessOrder(at, order)
			require.NoError(rt, err)
			require.NoError(rt, ex.Verify())

			var traded, filled int64
			for _, ev := range res.Tape {
				if ev.Kind == common.TradeEvent {
					traded += ev.Quantity
				}
			}
			for _, m := range res.Messages {
				filled += m.FilledQuantity()
				if order.Style == common.FillOrKill && m.OrderID == res.Order.ID && m.Kind != common.Fail {
					require.Equal(rt, common.Filled, m.Kind, "FOK never partially fills")
				}
			}
			// Both sides of every trade are reported; ACKs carry the order's
			// own price and quantity and are left out.
			var acked int64
			for _, m := range res.Messages {
				if m.Kind == common.Ack {
					acked += m.FilledQuantity()
				}
			}
			require.Equal(rt, 2*traded, filled-acked)
		}
	})
}
