// Package storage defines persistence contracts for marketplace state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/longhan2109/nft-marketplace/internal/market"
	"github.com/longhan2109/nft-marketplace/internal/market/event"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// ListingRecord stores one listing for an asset key. A record with price
// zero is retained but reads as "not listed" to the domain.
type ListingRecord struct {
	Key       market.AssetKey
	Price     uint64
	Seller    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Listing converts the record to its domain representation.
func (r ListingRecord) Listing() market.Listing {
	return market.Listing{Price: r.Price, Seller: r.Seller}
}

// ListingPage stores one page of listing records.
type ListingPage struct {
	Listings      []ListingRecord
	NextPageToken string
}

// EventPage stores one page of journal events.
type EventPage struct {
	Events        []event.Event
	NextPageToken string
}

// ListingStore persists the listing registry.
type ListingStore interface {
	// GetListing returns the record for the key, or ErrNotFound.
	GetListing(ctx context.Context, key market.AssetKey) (ListingRecord, error)
	// PutListing creates or replaces the record for its key.
	PutListing(ctx context.Context, rec ListingRecord) error
	// DeleteListing removes the record for the key, or ErrNotFound.
	DeleteListing(ctx context.Context, key market.AssetKey) error
	// ListListings returns one page of records ordered by key.
	ListListings(ctx context.Context, pageSize int, pageToken string) (ListingPage, error)
}

// ProceedsStore persists per-seller withdrawable balances. A seller
// absent from the store has balance zero; withdrawn entries are zeroed,
// never removed.
type ProceedsStore interface {
	// GetProceeds returns the seller's balance, zero when absent.
	GetProceeds(ctx context.Context, seller string) (uint64, error)
	// CreditProceeds adds amount to the seller's balance, creating the
	// entry on first credit.
	CreditProceeds(ctx context.Context, seller string, amount uint64) error
	// DebitProceeds zeroes the seller's balance and returns the drained
	// amount, as one atomic operation. The zero-balance entry is kept.
	DebitProceeds(ctx context.Context, seller string) (uint64, error)
}

// EventStore persists the append-only event journal, which doubles as the
// broadcast outbox.
type EventStore interface {
	// AppendEvent appends the event and returns its assigned sequence.
	AppendEvent(ctx context.Context, evt event.Event) (uint64, error)
	// ListEvents returns one page of events ordered by sequence.
	ListEvents(ctx context.Context, pageSize int, pageToken string) (EventPage, error)
	// UnpublishedEvents returns up to limit events not yet broadcast,
	// in sequence order.
	UnpublishedEvents(ctx context.Context, limit int) ([]event.Event, error)
	// MarkEventPublished records that the event was broadcast.
	MarkEventPublished(ctx context.Context, seq uint64) error
}

// MarketStore combines the registry, ledger and journal with the
// composite operations the orchestrator needs to apply atomically.
type MarketStore interface {
	ListingStore
	ProceedsStore
	EventStore

	// ApplySale deletes the listing and credits the seller by amount in
	// one atomic unit. Returns ErrNotFound when the listing is absent.
	ApplySale(ctx context.Context, key market.AssetKey, seller string, amount uint64) error
	// RevertSale restores a listing deleted by ApplySale and debits the
	// seller by amount, in one atomic unit. It compensates a failed
	// asset transfer so the enclosing buy stays all-or-nothing.
	RevertSale(ctx context.Context, rec ListingRecord, amount uint64) error
}
