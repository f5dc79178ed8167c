package agent

import (
	"math/rand/v2"
	"testing"

	"bourse/internal/common"
	"bourse/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assignment(id int64, who string, side common.Side, price, qty int64) common.Assignment {
	a, err := common.NewAssignment(id, "CUS", who, side, common.Limit, price, qty, 0, 0)
	if err != nil {
		panic(err)
	}
	return a
}

func emptyLOB() engine.Snapshot {
	return engine.New(engine.DefaultConfig()).PublishLOB(0, 5)
}

// quoteAndAccept gets an order from the trader and records it under id.
func quoteAndAccept(t *testing.T, tr Trader, id uint64) common.Order {
	t.Helper()
	order, ok := tr.GetOrder(1, 1, emptyLOB())
	require.True(t, ok)
	order.ID = id
	tr.Submitted(*order)
	return *order
}

func TestGiveaway_QuotesLimit(t *testing.T) {
	tr, err := New("GVWY", "B00", 0, nil)
	require.NoError(t, err)

	_, ok := tr.GetOrder(1, 1, emptyLOB())
	assert.False(t, ok, "no assignment, no order")

	assert.False(t, tr.AddAssignment(assignment(7, "B00", common.Bid, 120, 2)))
	order, ok := tr.GetOrder(1, 1, emptyLOB())
	require.True(t, ok)
	assert.Equal(t, int64(120), order.Price)
	assert.Equal(t, int64(2), order.Quantity)
	assert.Equal(t, int64(7), order.Assignment)
	assert.Equal(t, "B00", order.Participant)
}

func TestZeroIntelligence_StaysWithinLimit(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	lob := emptyLOB()

	buyer, err := New("ZIC", "B01", 0, rng)
	require.NoError(t, err)
	buyer.AddAssignment(assignment(1, "B01", common.Bid, 80, 1))
	seller, err := New("ZIC", "S01", 0, rng)
	require.NoError(t, err)
	seller.AddAssignment(assignment(2, "S01", common.Ask, 150, 1))

	for range 200 {
		bid, _ := buyer.GetOrder(1, 1, lob)
		assert.GreaterOrEqual(t, bid.Price, lob.Bids.Worst)
		assert.LessOrEqual(t, bid.Price, int64(80))

		ask, _ := seller.GetOrder(1, 1, lob)
		assert.GreaterOrEqual(t, ask.Price, int64(150))
		assert.LessOrEqual(t, ask.Price, lob.Asks.Worst)
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New("AA", "B02", 0, nil)
	assert.Error(t, err)
}

func TestBookkeep_FillBooksProfitAndClears(t *testing.T) {
	tr, _ := New("GVWY", "B00", 0, nil)
	tr.AddAssignment(assignment(1, "B00", common.Bid, 120, 1))
	quote := quoteAndAccept(t, tr, 10)

	require.NoError(t, tr.Bookkeep(common.Message{
		Participant: "B00", OrderID: quote.ID, Kind: common.Filled,
		Fills: []common.Fill{{Price: 100, Quantity: 1}},
	}, 10))

	assert.Equal(t, int64(20), tr.Balance())
	assert.Equal(t, 1, tr.Trades())
	assert.Empty(t, tr.Assignments())
	assert.Empty(t, tr.Quotes())
}

func TestBookkeep_PartialFills(t *testing.T) {
	tr, _ := New("GVWY", "S00", 0, nil)
	tr.AddAssignment(assignment(1, "S00", common.Ask, 90, 5))
	quote := quoteAndAccept(t, tr, 11)

	// Resting quote partly hit: it stays live with the revised quantity.
	revised := quote
	revised.Quantity = 3
	require.NoError(t, tr.Bookkeep(common.Message{
		OrderID: quote.ID, Kind: common.Part,
		Fills: []common.Fill{{Price: 90, Quantity: 2}}, Revised: &revised,
	}, 5))
	assert.Zero(t, tr.Balance())
	require.Len(t, tr.Quotes(), 1)
	assert.Equal(t, int64(3), tr.Quotes()[0].Quantity)
	assert.Equal(t, int64(3), tr.Assignments()[0].Quantity)

	// A crossing remainder is dropped by the exchange.
	dropped := revised
	dropped.Quantity = 1
	dropped.Style = common.ImmediateOrCancel
	require.NoError(t, tr.Bookkeep(common.Message{
		OrderID: quote.ID, Kind: common.Part,
		Fills: []common.Fill{{Price: 95, Quantity: 2}}, Revised: &dropped, Fee: 4,
	}, 6))
	assert.Equal(t, int64(10-4), tr.Balance())
	assert.Empty(t, tr.Quotes())
	assert.Equal(t, int64(1), tr.Assignments()[0].Quantity)
}

func TestBookkeep_CancelAndFailDropQuote(t *testing.T) {
	tr, _ := New("GVWY", "B00", 0, nil)
	tr.AddAssignment(assignment(1, "B00", common.Bid, 120, 1))
	quote := quoteAndAccept(t, tr, 12)
	assert.True(t, tr.AddAssignment(assignment(2, "B00", common.Bid, 110, 1)), "live quote must be cancelled")

	require.NoError(t, tr.Bookkeep(common.Message{OrderID: quote.ID, Kind: common.Cancelled}, 2))
	assert.Empty(t, tr.Quotes())

	quote = quoteAndAccept(t, tr, 13)
	require.NoError(t, tr.Bookkeep(common.Message{OrderID: quote.ID, Kind: common.Fail}, 3))
	assert.Empty(t, tr.Quotes())
	assert.Len(t, tr.Assignments(), 1)
}

func TestBookkeep_ContractViolations(t *testing.T) {
	tr, _ := New("GVWY", "B00", 0, nil)
	tr.AddAssignment(assignment(1, "B00", common.Bid, 100, 1))

	err := tr.Bookkeep(common.Message{OrderID: 99, Kind: common.Filled, Fills: []common.Fill{{Price: 1, Quantity: 1}}}, 1)
	assert.ErrorIs(t, err, common.ErrUnknownOrder)

	quote := quoteAndAccept(t, tr, 14)
	err = tr.Bookkeep(common.Message{
		OrderID: quote.ID, Kind: common.Filled,
		Fills: []common.Fill{{Price: 105, Quantity: 1}},
	}, 2)
	assert.ErrorIs(t, err, common.ErrNegativeProfit)
	assert.True(t, common.IsContractViolation(err))
}

func TestProfit(t *testing.T) {
	assert.Equal(t, int64(30), Profit(common.Bid, 110, common.Fill{Price: 100, Quantity: 3}))
	assert.Equal(t, int64(-10), Profit(common.Ask, 110, common.Fill{Price: 100, Quantity: 1}))
}
