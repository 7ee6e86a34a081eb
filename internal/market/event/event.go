// Package event defines the marketplace event journal types.
//
// Events are facts that have occurred, not commands. The journal is
// append-only; the storage layer assigns each event a sequence number and
// the broadcaster uses the journal as its publish outbox.
package event

import (
	"time"

	"github.com/longhan2109/nft-marketplace/internal/market"
)

// Type identifies the type of a marketplace event.
type Type string

const (
	// TypeItemListed records a listing being created or re-priced.
	TypeItemListed Type = "market.item_listed"
	// TypeItemBought records a fulfilled sale.
	TypeItemBought Type = "market.item_bought"
	// TypeItemCanceled records a listing being cancelled by its owner.
	TypeItemCanceled Type = "market.item_canceled"
)

// Withdrawals intentionally emit no event; the external interface
// contract leaves that operation silent.

// Event is one immutable entry in the marketplace journal.
type Event struct {
	// Seq is the journal sequence number (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Type is the event type.
	Type Type
	// Key addresses the asset the event concerns.
	Key market.AssetKey
	// Actor is the identity that triggered the event.
	Actor string
	// Price is the listed price for listed/bought events, zero otherwise.
	Price uint64
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// ItemListed builds a listing event for a newly stored or re-priced listing.
func ItemListed(key market.AssetKey, seller string, price uint64, at time.Time) Event {
	return Event{Type: TypeItemListed, Key: key, Actor: seller, Price: price, Timestamp: at.UTC()}
}

// ItemBought builds a fulfilment event carrying the listed price.
func ItemBought(key market.AssetKey, buyer string, price uint64, at time.Time) Event {
	return Event{Type: TypeItemBought, Key: key, Actor: buyer, Price: price, Timestamp: at.UTC()}
}

// ItemCanceled builds a cancellation event.
func ItemCanceled(key market.AssetKey, seller string, at time.Time) Event {
	return Event{Type: TypeItemCanceled, Key: key, Actor: seller, Timestamp: at.UTC()}
}

// Valid reports whether the type is one of the journal's known types.
func (t Type) Valid() bool {
	switch t {
	case TypeItemListed, TypeItemBought, TypeItemCanceled:
		return true
	}
	return false
}
