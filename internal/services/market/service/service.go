// Package service implements the marketplace transaction orchestrator:
// the operation set that validates preconditions against the listing
// registry, the proceeds ledger and the ownership registry, then applies
// effects in a fixed order.
//
// The ordering is the re-entrancy defense: every registry and ledger
// mutation commits before any external call-out (asset transfer, payout
// send), so a call-out that synchronously re-enters the marketplace
// observes post-mutation state. No lock is held across call-outs.
//
// Known gap, preserved deliberately: UpdateListing does not re-verify
// marketplace approval, so a listing can become unfulfillable if approval
// is revoked after the update.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/longhan2109/nft-marketplace/internal/market"
	"github.com/longhan2109/nft-marketplace/internal/market/event"
	"github.com/longhan2109/nft-marketplace/internal/registry"
	"github.com/longhan2109/nft-marketplace/internal/services/market/storage"
)

// Service orchestrates marketplace operations over an injected store and
// the external ownership/payout capabilities.
type Service struct {
	store   storage.MarketStore
	gate    registry.OwnershipGate
	payouts registry.PayoutSender
	clock   func() time.Time
}

// New creates a Service with default dependencies.
func New(store storage.MarketStore, gate registry.OwnershipGate, payouts registry.PayoutSender) *Service {
	return &Service{
		store:   store,
		gate:    gate,
		payouts: payouts,
		clock:   time.Now,
	}
}

// WithClock overrides the service clock; tests use a fixed time source.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Receipt describes a fulfilled sale.
type Receipt struct {
	Key     market.AssetKey
	Price   uint64
	Payment uint64
	Seller  string
	Buyer   string
}

// List creates a listing for the asset. The caller must own the asset and
// the marketplace must hold transfer approval; no custody moves here.
func (s *Service) List(ctx context.Context, key market.AssetKey, price uint64, caller string) (storage.ListingRecord, error) {
	if err := s.validate(key, caller); err != nil {
		return storage.ListingRecord{}, err
	}

	current, err := s.currentListing(ctx, key)
	if err != nil {
		return storage.ListingRecord{}, err
	}
	if err := market.RequireNotListed(key, current.Listing()); err != nil {
		return storage.ListingRecord{}, err
	}
	if err := market.RequirePositivePrice(key, price); err != nil {
		return storage.ListingRecord{}, err
	}
	if err := s.requireOwnership(ctx, key, caller); err != nil {
		return storage.ListingRecord{}, err
	}
	approved, err := s.gate.IsApprovedForMarketplace(ctx, key)
	if err != nil {
		return storage.ListingRecord{}, market.ErrOwnershipLookupFailed.WithMetadata(key.Metadata()).WithCause(err)
	}
	if err := market.RequireApproved(key, approved); err != nil {
		return storage.ListingRecord{}, err
	}

	now := s.clock().UTC()
	rec := storage.ListingRecord{
		Key:       key,
		Price:     price,
		Seller:    caller,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.PutListing(ctx, rec); err != nil {
		return storage.ListingRecord{}, fmt.Errorf("persist listing: %w", err)
	}
	if _, err := s.store.AppendEvent(ctx, event.ItemListed(key, caller, price, now)); err != nil {
		// Keep the call all-or-nothing: undo the stored listing.
		if delErr := s.store.DeleteListing(ctx, key); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			log.Printf("undo listing %s after journal failure: %v", key, delErr)
		}
		return storage.ListingRecord{}, fmt.Errorf("journal listing: %w", err)
	}
	return rec, nil
}

// Buy fulfils a listing. The seller is credited the full attached payment
// (any amount above the listed price included, with no refund path), the
// listing is deleted, and only then is the asset transfer issued. A
// transfer that re-enters the marketplace finds the listing already gone.
func (s *Service) Buy(ctx context.Context, key market.AssetKey, payment uint64, caller string) (Receipt, error) {
	if err := s.validate(key, caller); err != nil {
		return Receipt{}, err
	}

	current, err := s.currentListing(ctx, key)
	if err != nil {
		return Receipt{}, err
	}
	listing := current.Listing()
	if err := market.RequireListed(key, listing); err != nil {
		return Receipt{}, err
	}
	if err := market.RequirePriceMet(key, listing, payment); err != nil {
		return Receipt{}, err
	}

	// Effects first: credit the seller and delete the listing as one
	// atomic unit, before the external transfer call.
	if err := s.store.ApplySale(ctx, key, current.Seller, payment); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Receipt{}, market.ErrNotListed.WithMetadata(key.Metadata())
		}
		return Receipt{}, fmt.Errorf("apply sale: %w", err)
	}

	if err := s.gate.Transfer(ctx, key, current.Seller, caller); err != nil {
		// Asset never moved; restore the listing and the ledger so the
		// call fails with no observable effects.
		if revertErr := s.store.RevertSale(ctx, current, payment); revertErr != nil {
			log.Printf("revert sale %s after transfer failure: %v", key, revertErr)
		}
		return Receipt{}, market.ErrAssetTransferFailed.WithMetadata(key.Metadata()).WithCause(err)
	}

	if _, err := s.store.AppendEvent(ctx, event.ItemBought(key, caller, current.Price, s.clock().UTC())); err != nil {
		// The sale is final once the asset moved; a journal failure is
		// logged rather than unwinding an already-transferred asset.
		log.Printf("journal sale %s: %v", key, err)
	}

	return Receipt{
		Key:     key,
		Price:   current.Price,
		Payment: payment,
		Seller:  current.Seller,
		Buyer:   caller,
	}, nil
}

// Cancel removes the caller's listing without any transfer.
func (s *Service) Cancel(ctx context.Context, key market.AssetKey, caller string) error {
	if err := s.validate(key, caller); err != nil {
		return err
	}

	current, err := s.currentListing(ctx, key)
	if err != nil {
		return err
	}
	if err := market.RequireListed(key, current.Listing()); err != nil {
		return err
	}
	if err := s.requireOwnership(ctx, key, caller); err != nil {
		return err
	}

	if err := s.store.DeleteListing(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return market.ErrNotListed.WithMetadata(key.Metadata())
		}
		return fmt.Errorf("delete listing: %w", err)
	}
	if _, err := s.store.AppendEvent(ctx, event.ItemCanceled(key, caller, s.clock().UTC())); err != nil {
		if putErr := s.store.PutListing(ctx, current); putErr != nil {
			log.Printf("restore listing %s after journal failure: %v", key, putErr)
		}
		return fmt.Errorf("journal cancellation: %w", err)
	}
	return nil
}

// UpdateListing replaces the listed price. A new price of zero re-delists
// the asset through the active-iff-price-above-zero invariant; approval
// is not re-checked here.
func (s *Service) UpdateListing(ctx context.Context, key market.AssetKey, newPrice uint64, caller string) (storage.ListingRecord, error) {
	if err := s.validate(key, caller); err != nil {
		return storage.ListingRecord{}, err
	}

	current, err := s.currentListing(ctx, key)
	if err != nil {
		return storage.ListingRecord{}, err
	}
	if err := market.RequireListed(key, current.Listing()); err != nil {
		return storage.ListingRecord{}, err
	}
	if err := s.requireOwnership(ctx, key, caller); err != nil {
		return storage.ListingRecord{}, err
	}

	updated := current
	updated.Price = newPrice
	updated.UpdatedAt = s.clock().UTC()
	if err := s.store.PutListing(ctx, updated); err != nil {
		return storage.ListingRecord{}, fmt.Errorf("persist listing: %w", err)
	}
	if _, err := s.store.AppendEvent(ctx, event.ItemListed(key, updated.Seller, newPrice, updated.UpdatedAt)); err != nil {
		if putErr := s.store.PutListing(ctx, current); putErr != nil {
			log.Printf("restore listing %s after journal failure: %v", key, putErr)
		}
		return storage.ListingRecord{}, fmt.Errorf("journal listing update: %w", err)
	}
	return updated, nil
}

// Withdraw drains the caller's proceeds balance and sends the funds over
// the payout rail. The balance is zeroed before the send is attempted, so
// a re-entrant withdraw during the send observes zero and fails with
// NoProceeds. A failed send restores the balance and fails the call.
func (s *Service) Withdraw(ctx context.Context, caller string) (uint64, error) {
	if err := market.RequireCaller(caller); err != nil {
		return 0, err
	}

	amount, err := s.store.DebitProceeds(ctx, caller)
	if err != nil {
		return 0, fmt.Errorf("debit proceeds: %w", err)
	}
	if amount == 0 {
		return 0, market.ErrNoProceeds.WithMetadata(map[string]string{"caller": caller})
	}

	if err := s.payouts.Send(ctx, caller, amount); err != nil {
		if creditErr := s.store.CreditProceeds(ctx, caller, amount); creditErr != nil {
			// Restoring the balance failed; surface both so no loss goes unnoticed.
			return 0, market.ErrTransferProceedsFailed.
				WithMetadata(map[string]string{"caller": caller}).
				WithCause(errors.Join(err, creditErr))
		}
		return 0, market.ErrTransferProceedsFailed.
			WithMetadata(map[string]string{"caller": caller}).
			WithCause(err)
	}
	return amount, nil
}

// GetListing returns the stored listing for the key; the zero value means
// the key is not listed. Pure read, no side effects.
func (s *Service) GetListing(ctx context.Context, key market.AssetKey) (market.Listing, error) {
	if err := key.Validate(); err != nil {
		return market.Listing{}, err
	}
	rec, err := s.currentListing(ctx, key)
	if err != nil {
		return market.Listing{}, err
	}
	return rec.Listing(), nil
}

// GetProceeds returns the seller's withdrawable balance, zero when the
// seller was never credited. Pure read, no side effects.
func (s *Service) GetProceeds(ctx context.Context, seller string) (uint64, error) {
	if err := market.RequireCaller(seller); err != nil {
		return 0, err
	}
	balance, err := s.store.GetProceeds(ctx, seller)
	if err != nil {
		return 0, fmt.Errorf("get proceeds: %w", err)
	}
	return balance, nil
}

// ListListings returns one page of listing records.
func (s *Service) ListListings(ctx context.Context, pageSize int, pageToken string) (storage.ListingPage, error) {
	return s.store.ListListings(ctx, pageSize, pageToken)
}

// ListEvents returns one page of journal events.
func (s *Service) ListEvents(ctx context.Context, pageSize int, pageToken string) (storage.EventPage, error) {
	return s.store.ListEvents(ctx, pageSize, pageToken)
}

func (s *Service) validate(key market.AssetKey, caller string) error {
	if s == nil || s.store == nil || s.gate == nil {
		return fmt.Errorf("service is not configured")
	}
	if err := key.Validate(); err != nil {
		return err
	}
	return market.RequireCaller(caller)
}

// currentListing reads the stored record, mapping absence to the zero
// record so precondition guards can apply the active-iff-price>0 rule.
func (s *Service) currentListing(ctx context.Context, key market.AssetKey) (storage.ListingRecord, error) {
	rec, err := s.store.GetListing(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ListingRecord{Key: key}, nil
		}
		return storage.ListingRecord{}, fmt.Errorf("get listing: %w", err)
	}
	return rec, nil
}

// requireOwnership re-verifies current ownership against the registry;
// the seller snapshot stored on the listing is never authoritative.
func (s *Service) requireOwnership(ctx context.Context, key market.AssetKey, caller string) error {
	owner, err := s.gate.OwnerOf(ctx, key)
	if err != nil {
		return market.ErrOwnershipLookupFailed.WithMetadata(key.Metadata()).WithCause(err)
	}
	return market.RequireOwner(key, owner, caller)
}
