// Package marketfakes provides lightweight in-memory fakes for
// marketplace tests: the market store, the ownership gate, and the
// payout sender.
package marketfakes

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/longhan2109/nft-marketplace/internal/market"
	"github.com/longhan2109/nft-marketplace/internal/market/event"
	"github.com/longhan2109/nft-marketplace/internal/services/market/storage"
)

// Store is a map-backed MarketStore fake for tests.
type Store struct {
	Listings  map[market.AssetKey]storage.ListingRecord
	Balances  map[string]uint64
	Events    []event.Event
	Published map[uint64]bool
	nextSeq   uint64

	// Failure hooks; when set, the matching operation returns the error.
	PutListingErr    error
	DeleteListingErr error
	ApplySaleErr     error
	AppendEventErr   error
}

// NewStore constructs a Store fake with initialized state maps.
func NewStore() *Store {
	return &Store{
		Listings:  make(map[market.AssetKey]storage.ListingRecord),
		Balances:  make(map[string]uint64),
		Published: make(map[uint64]bool),
	}
}

func (s *Store) GetListing(_ context.Context, key market.AssetKey) (storage.ListingRecord, error) {
	rec, ok := s.Listings[key]
	if !ok {
		return storage.ListingRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) PutListing(_ context.Context, rec storage.ListingRecord) error {
	if s.PutListingErr != nil {
		return s.PutListingErr
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	s.Listings[rec.Key] = rec
	return nil
}

func (s *Store) DeleteListing(_ context.Context, key market.AssetKey) error {
	if s.DeleteListingErr != nil {
		return s.DeleteListingErr
	}
	if _, ok := s.Listings[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.Listings, key)
	return nil
}

func (s *Store) ListListings(_ context.Context, pageSize int, pageToken string) (storage.ListingPage, error) {
	keys := make([]market.AssetKey, 0, len(s.Listings))
	for key := range s.Listings {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Collection != keys[j].Collection {
			return keys[i].Collection < keys[j].Collection
		}
		return keys[i].TokenID < keys[j].TokenID
	})

	start := 0
	if pageToken != "" {
		for i, key := range keys {
			if key.Collection+":"+strconv.FormatUint(key.TokenID, 10) == pageToken {
				start = i + 1
				break
			}
		}
	}

	page := storage.ListingPage{}
	for i := start; i < len(keys) && len(page.Listings) < pageSize; i++ {
		page.Listings = append(page.Listings, s.Listings[keys[i]])
	}
	if last := start + len(page.Listings); last < len(keys) && len(page.Listings) > 0 {
		key := page.Listings[len(page.Listings)-1].Key
		page.NextPageToken = key.Collection + ":" + strconv.FormatUint(key.TokenID, 10)
	}
	return page, nil
}

func (s *Store) GetProceeds(_ context.Context, seller string) (uint64, error) {
	return s.Balances[seller], nil
}

func (s *Store) CreditProceeds(_ context.Context, seller string, amount uint64) error {
	s.Balances[seller] += amount
	return nil
}

func (s *Store) DebitProceeds(_ context.Context, seller string) (uint64, error) {
	balance := s.Balances[seller]
	s.Balances[seller] = 0
	return balance, nil
}

func (s *Store) ApplySale(_ context.Context, key market.AssetKey, seller string, amount uint64) error {
	if s.ApplySaleErr != nil {
		return s.ApplySaleErr
	}
	if _, ok := s.Listings[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.Listings, key)
	s.Balances[seller] += amount
	return nil
}

func (s *Store) RevertSale(_ context.Context, rec storage.ListingRecord, amount uint64) error {
	s.Listings[rec.Key] = rec
	if s.Balances[rec.Seller] >= amount {
		s.Balances[rec.Seller] -= amount
	}
	return nil
}

func (s *Store) AppendEvent(_ context.Context, evt event.Event) (uint64, error) {
	if s.AppendEventErr != nil {
		return 0, s.AppendEventErr
	}
	s.nextSeq++
	evt.Seq = s.nextSeq
	s.Events = append(s.Events, evt)
	return evt.Seq, nil
}

func (s *Store) ListEvents(_ context.Context, pageSize int, pageToken string) (storage.EventPage, error) {
	afterSeq := uint64(0)
	if strings.TrimSpace(pageToken) != "" {
		parsed, err := strconv.ParseUint(pageToken, 10, 64)
		if err != nil {
			return storage.EventPage{}, err
		}
		afterSeq = parsed
	}

	page := storage.EventPage{}
	for _, evt := range s.Events {
		if evt.Seq <= afterSeq {
			continue
		}
		if len(page.Events) == pageSize {
			page.NextPageToken = strconv.FormatUint(page.Events[pageSize-1].Seq, 10)
			break
		}
		page.Events = append(page.Events, evt)
	}
	return page, nil
}

func (s *Store) UnpublishedEvents(_ context.Context, limit int) ([]event.Event, error) {
	var events []event.Event
	for _, evt := range s.Events {
		if s.Published[evt.Seq] {
			continue
		}
		events = append(events, evt)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (s *Store) MarkEventPublished(_ context.Context, seq uint64) error {
	s.Published[seq] = true
	return nil
}

// LastEvent returns the most recently appended event, or false when the
// journal is empty.
func (s *Store) LastEvent() (event.Event, bool) {
	if len(s.Events) == 0 {
		return event.Event{}, false
	}
	return s.Events[len(s.Events)-1], true
}

// Close satisfies backend lifecycle contracts; the fake holds no resources.
func (s *Store) Close() error {
	return nil
}
