package store

import (
	"encoding/binary"
	"errors"
	"math"

	"bourse/internal/common"
)

var (
	ErrRecordTooShort = errors.New("record too short for its header")
	ErrStringTooLong  = errors.New("party or venue name too long to encode")
)

// Tape record wire format, all integers big-endian:
//
//	kind      1 byte
//	side      1 byte
//	time      8 bytes (float64 bits)
//	price     8 bytes
//	quantity  8 bytes
//	sell id   8 bytes
//	buy id    8 bytes
//	order id  8 bytes
//	venue len 1 byte
//	seller len 2 bytes
//	buyer len 2 bytes
//	venue, seller, buyer  n bytes
const recordFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 8 + 8 + 8 + 1 + 2 + 2

// EncodeEvent serializes one tape event.
func EncodeEvent(ev common.TapeEvent) ([]byte, error) {
	if len(ev.Venue) > math.MaxUint8 || len(ev.Seller) > math.MaxUint16 || len(ev.Buyer) > math.MaxUint16 {
		return nil, ErrStringTooLong
	}
	buf := make([]byte, recordFixedHeaderLen+len(ev.Venue)+len(ev.Seller)+len(ev.Buyer))
	buf[0] = byte(ev.Kind)
	buf[1] = byte(ev.Side)
	binary.BigEndian.PutUint64(buf[2:10], math.Float64bits(ev.Time))
	binary.BigEndian.PutUint64(buf[10:18], uint64(ev.Price))
	binary.BigEndian.PutUint64(buf[18:26], uint64(ev.Quantity))
	binary.BigEndian.PutUint64(buf[26:34], ev.SellID)
	binary.BigEndian.PutUint64(buf[34:42], ev.BuyID)
	binary.BigEndian.PutUint64(buf[42:50], ev.OrderID)
	buf[50] = uint8(len(ev.Venue))
	binary.BigEndian.PutUint16(buf[51:53], uint16(len(ev.Seller)))
	binary.BigEndian.PutUint16(buf[53:55], uint16(len(ev.Buyer)))

	offset := recordFixedHeaderLen
	offset += copy(buf[offset:], ev.Venue)
	offset += copy(buf[offset:], ev.Seller)
	copy(buf[offset:], ev.Buyer)
	return buf, nil
}

// DecodeEvent parses a record produced by EncodeEvent.
func DecodeEvent(msg []byte) (common.TapeEvent, error) {
	if len(msg) < recordFixedHeaderLen {
		return common.TapeEvent{}, ErrRecordTooShort
	}
	ev := common.TapeEvent{
		Kind:     common.TapeKind(msg[0]),
		Side:     common.Side(msg[1]),
		Time:     math.Float64frombits(binary.BigEndian.Uint64(msg[2:10])),
		Price:    int64(binary.BigEndian.Uint64(msg[10:18])),
		Quantity: int64(binary.BigEndian.Uint64(msg[18:26])),
		SellID:   binary.BigEndian.Uint64(msg[26:34]),
		BuyID:    binary.BigEndian.Uint64(msg[34:42]),
		OrderID:  binary.BigEndian.Uint64(msg[42:50]),
	}
	venueLen := int(msg[50])
	sellerLen := int(binary.BigEndian.Uint16(msg[51:53]))
	buyerLen := int(binary.BigEndian.Uint16(msg[53:55]))

	// Calculate expected total length.
	if len(msg) < recordFixedHeaderLen+venueLen+sellerLen+buyerLen {
		return common.TapeEvent{}, ErrRecordTooShort
	}
	offset := recordFixedHeaderLen
	ev.Venue = string(msg[offset : offset+venueLen])
	offset += venueLen
	ev.Seller = string(msg[offset : offset+sellerLen])
	offset += sellerLen
	ev.Buyer = string(msg[offset : offset+buyerLen])
	return ev, nil
}

// summary value format: [time:8][traders:4][balance:8][best bid:8][best ask:8]
const summaryLen = 8 + 4 + 8 + 8 + 8

func encodeSummary(s Summary) []byte {
	buf := make([]byte, summaryLen)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(s.Time))
	binary.BigEndian.PutUint32(buf[8:12], uint32(s.Traders))
	binary.BigEndian.PutUint64(buf[12:20], uint64(s.Balance))
	binary.BigEndian.PutUint64(buf[20:28], uint64(s.BestBid))
	binary.BigEndian.PutUint64(buf[28:36], uint64(s.BestAsk))
	return buf
}

func decodeSummary(session, ttype string, b []byte) (Summary, error) {
	if len(b) != summaryLen {
		return Summary{}, errors.New("invalid summary record length")
	}
	return Summary{
		Session: session,
		Type:    ttype,
		Time:    math.Float64frombits(binary.BigEndian.Uint64(b[0:8])),
		Traders: int(binary.BigEndian.Uint32(b[8:12])),
		Balance: int64(binary.BigEndian.Uint64(b[12:20])),
		BestBid: int64(binary.BigEndian.Uint64(b[20:28])),
		BestAsk: int64(binary.BigEndian.Uint64(b[28:36])),
	}, nil
}
