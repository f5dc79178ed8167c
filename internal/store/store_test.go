package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"bourse/internal/common"
	"bourse/internal/config"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTape() []common.TapeEvent {
	return []common.TapeEvent{
		{Kind: common.TradeEvent, Venue: "lit", Time: 1.25, Price: 100, Quantity: 3,
			Seller: "S01", Buyer: "B07", SellID: 4, BuyID: 9},
		{Kind: common.CancelEvent, Venue: "lit", Time: 2.5, Quantity: 1, OrderID: 12, Side: common.Ask},
		{Kind: common.TradeEvent, Venue: "dark", Time: 3, Price: 97, Quantity: 300,
			Seller: "S02", Buyer: "B01", SellID: 15, BuyID: 16},
	}
}

func sampleSummaries(session string) []Summary {
	return []Summary{
		{Session: session, Time: 600, Type: "GVWY", Traders: 4, Balance: 90, BestBid: 99},
		{Session: session, Time: 600, Type: "ZIC", Traders: 3, Balance: 10, BestBid: 99, BestAsk: 104},
	}
}

func TestCodec_EncodesEveryField(t *testing.T) {
	for _, ev := range sampleTape() {
		buf, err := EncodeEvent(ev)
		require.NoError(t, err)
		got, err := DecodeEvent(buf)
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}
}

func TestCodec_RejectsTruncatedRecords(t *testing.T) {
	buf, err := EncodeEvent(sampleTape()[0])
	require.NoError(t, err)

	_, err = DecodeEvent(buf[:recordFixedHeaderLen-1])
	assert.ErrorIs(t, err, ErrRecordTooShort)
	_, err = DecodeEvent(buf[:len(buf)-1])
	assert.ErrorIs(t, err, ErrRecordTooShort)

	_, err = EncodeEvent(common.TapeEvent{Venue: string(make([]byte, 300))})
	assert.ErrorIs(t, err, ErrStringTooLong)
}

func TestSummary_Average(t *testing.T) {
	s := Summary{Traders: 4, Balance: 90}
	assert.Equal(t, "22.5", s.Average().String())
	assert.True(t, Summary{}.Average().IsZero())
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSV_WritesTapeAndSummary(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := Open(config.Store{Backend: "csv", Path: dir})
	require.NoError(t, err)

	require.NoError(t, sink.WriteTape("s1", sampleTape()))
	require.NoError(t, sink.WriteSummary(sampleSummaries("s1")))
	require.NoError(t, sink.Close())

	tape := readCSV(t, filepath.Join(dir, TapeFile))
	require.Len(t, tape, 4)
	assert.Equal(t, tapeHeader, tape[0])
	assert.Equal(t, []string{"s1", "lit", "Trade", "1.250", "100", "3", "S01", "B07", "0"}, tape[1])
	assert.Equal(t, "CAN", tape[2][2])
	assert.Equal(t, "12", tape[2][8])

	summary := readCSV(t, filepath.Join(dir, SummaryFile))
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"s1", "600", "GVWY", "90", "4", "22.500000", "99", "N"}, summary[1])
}

func TestCSV_ConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	sink, err := OpenCSV(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, session := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.WriteTape(session, sampleTape()))
		}()
	}
	wg.Wait()
	require.NoError(t, sink.Close())
	assert.Len(t, readCSV(t, filepath.Join(dir, TapeFile)), 1+4*len(sampleTape()))
}

func TestSQLite_StoresTapeAndSummaries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bourse.db")
	sink, err := OpenSQLite(path)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.WriteTape("s1", sampleTape()))
	require.NoError(t, sink.WriteTape("s2", sampleTape()[:1]))
	require.NoError(t, sink.WriteTape("s3", nil))
	require.NoError(t, sink.WriteSummary(sampleSummaries("s1")))

	rows, err := sink.Tape("s1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, uint64(0), rows[0].Seq)
	assert.Equal(t, "Trade", rows[0].Kind)
	assert.Equal(t, "B07", rows[0].Buyer)
	assert.Equal(t, uint64(12), rows[1].OrderID)
	assert.Equal(t, int64(300), rows[2].Quantity)

	summaries, err := sink.Summaries("s1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "GVWY", summaries[0].TraderType)
	assert.Equal(t, "22.5", summaries[0].Average.String())
	require.NotNil(t, summaries[0].BestBid)
	assert.Equal(t, int64(99), *summaries[0].BestBid)
	assert.Nil(t, summaries[0].BestAsk)
}

func TestPebble_StoresTapeInOrder(t *testing.T) {
	sink, err := OpenPebble(filepath.Join(t.TempDir(), "pebble"))
	require.NoError(t, err)
	defer sink.Close()

	// Enough events that a plain decimal key would sort 10 before 2.
	var tape []common.TapeEvent
	for i := range 12 {
		tape = append(tape, common.TapeEvent{Kind: common.TradeEvent, Venue: "lit", Time: float64(i), Price: int64(100 + i), Quantity: 1})
	}
	require.NoError(t, sink.WriteTape("s1", tape))
	require.NoError(t, sink.WriteTape("s10", sampleTape()))

	got, err := sink.Tape("s1")
	require.NoError(t, err)
	assert.Equal(t, tape, got, "sessions sharing a prefix stay apart")

	require.NoError(t, sink.WriteSummary(sampleSummaries("s1")))
	zic, err := sink.Summary("s1", "ZIC")
	require.NoError(t, err)
	assert.Equal(t, sampleSummaries("s1")[1], zic)

	_, err = sink.Summary("s1", "AA")
	assert.ErrorIs(t, err, pebble.ErrNotFound)
}

func TestOpen_SelectsBackend(t *testing.T) {
	sink, err := Open(config.Store{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, Discard{}, sink)
	assert.NoError(t, sink.WriteTape("s", sampleTape()))

	_, err = Open(config.Store{Backend: "s3"})
	assert.Error(t, err)
}
