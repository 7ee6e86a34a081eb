package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/longhan2109/nft-marketplace/internal/market"
	"github.com/longhan2109/nft-marketplace/internal/market/event"
	"github.com/longhan2109/nft-marketplace/internal/services/market/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "market.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func listingFixture(key market.AssetKey, price uint64, seller string) storage.ListingRecord {
	now := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)
	return storage.ListingRecord{
		Key:       key,
		Price:     price,
		Seller:    seller,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestPutGetListingRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	input := listingFixture(key, 100, "alice")
	if err := store.PutListing(context.Background(), input); err != nil {
		t.Fatalf("put listing: %v", err)
	}

	got, err := store.GetListing(context.Background(), key)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Key != key {
		t.Fatalf("key = %v, want %v", got.Key, key)
	}
	if got.Price != 100 || got.Seller != "alice" {
		t.Fatalf("record = (%d, %q), want (100, alice)", got.Price, got.Seller)
	}
	if !got.CreatedAt.Equal(input.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, input.CreatedAt)
	}
}

func TestGetListingAbsentReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 404}
	_, err := store.GetListing(context.Background(), key)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestPutListingReplacesExisting(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	if err := store.PutListing(context.Background(), listingFixture(key, 100, "alice")); err != nil {
		t.Fatalf("put listing: %v", err)
	}
	updated := listingFixture(key, 250, "alice")
	updated.UpdatedAt = updated.UpdatedAt.Add(time.Hour)
	if err := store.PutListing(context.Background(), updated); err != nil {
		t.Fatalf("replace listing: %v", err)
	}

	got, err := store.GetListing(context.Background(), key)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Price != 250 {
		t.Fatalf("price = %d, want 250", got.Price)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("updated_at = %v, want after created_at %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestDeleteListing(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	if err := store.PutListing(context.Background(), listingFixture(key, 100, "alice")); err != nil {
		t.Fatalf("put listing: %v", err)
	}
	if err := store.DeleteListing(context.Background(), key); err != nil {
		t.Fatalf("delete listing: %v", err)
	}
	if err := store.DeleteListing(context.Background(), key); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestListListingsPaginates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	for i := uint64(1); i <= 5; i++ {
		key := market.AssetKey{Collection: "c-sunfall", TokenID: i}
		if err := store.PutListing(context.Background(), listingFixture(key, 10*i, "alice")); err != nil {
			t.Fatalf("put listing %d: %v", i, err)
		}
	}

	page, err := store.ListListings(context.Background(), 3, "")
	if err != nil {
		t.Fatalf("list listings: %v", err)
	}
	if len(page.Listings) != 3 {
		t.Fatalf("page len = %d, want 3", len(page.Listings))
	}
	if page.NextPageToken == "" {
		t.Fatal("expected next page token")
	}
	if page.Listings[0].Key.TokenID != 1 {
		t.Fatalf("first token = %d, want 1", page.Listings[0].Key.TokenID)
	}

	rest, err := store.ListListings(context.Background(), 3, page.NextPageToken)
	if err != nil {
		t.Fatalf("list listings page 2: %v", err)
	}
	if len(rest.Listings) != 2 {
		t.Fatalf("page 2 len = %d, want 2", len(rest.Listings))
	}
	if rest.NextPageToken != "" {
		t.Fatalf("page 2 token = %q, want empty", rest.NextPageToken)
	}
	if rest.Listings[0].Key.TokenID != 4 {
		t.Fatalf("page 2 first token = %d, want 4", rest.Listings[0].Key.TokenID)
	}
}

func TestProceedsCreditAndDebit(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	if got, err := store.GetProceeds(ctx, "alice"); err != nil || got != 0 {
		t.Fatalf("initial proceeds = (%d, %v), want (0, nil)", got, err)
	}

	if err := store.CreditProceeds(ctx, "alice", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := store.CreditProceeds(ctx, "alice", 50); err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if got, _ := store.GetProceeds(ctx, "alice"); got != 150 {
		t.Fatalf("balance = %d, want 150", got)
	}

	drained, err := store.DebitProceeds(ctx, "alice")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if drained != 150 {
		t.Fatalf("drained = %d, want 150", drained)
	}
	if got, _ := store.GetProceeds(ctx, "alice"); got != 0 {
		t.Fatalf("balance after debit = %d, want 0", got)
	}

	// A second debit drains nothing.
	if drained, err := store.DebitProceeds(ctx, "alice"); err != nil || drained != 0 {
		t.Fatalf("second debit = (%d, %v), want (0, nil)", drained, err)
	}
}

func TestApplySaleDeletesListingAndCredits(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	if err := store.PutListing(ctx, listingFixture(key, 100, "alice")); err != nil {
		t.Fatalf("put listing: %v", err)
	}

	if err := store.ApplySale(ctx, key, "alice", 150); err != nil {
		t.Fatalf("apply sale: %v", err)
	}

	if _, err := store.GetListing(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get listing error = %v, want ErrNotFound", err)
	}
	if got, _ := store.GetProceeds(ctx, "alice"); got != 150 {
		t.Fatalf("balance = %d, want 150", got)
	}
}

func TestApplySaleOnAbsentListingLeavesBalance(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}

	err := store.ApplySale(ctx, key, "alice", 150)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if got, _ := store.GetProceeds(ctx, "alice"); got != 0 {
		t.Fatalf("balance = %d, want 0 after rolled-back sale", got)
	}
}

func TestRevertSaleRestoresListingAndDebits(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	rec := listingFixture(key, 100, "alice")
	if err := store.PutListing(ctx, rec); err != nil {
		t.Fatalf("put listing: %v", err)
	}
	if err := store.ApplySale(ctx, key, "alice", 150); err != nil {
		t.Fatalf("apply sale: %v", err)
	}

	if err := store.RevertSale(ctx, rec, 150); err != nil {
		t.Fatalf("revert sale: %v", err)
	}

	got, err := store.GetListing(ctx, key)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Price != 100 || got.Seller != "alice" {
		t.Fatalf("restored record = (%d, %q), want (100, alice)", got.Price, got.Seller)
	}
	if balance, _ := store.GetProceeds(ctx, "alice"); balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}
}

func TestAppendEventAssignsSequences(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	now := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)

	first, err := store.AppendEvent(ctx, event.ItemListed(key, "alice", 100, now))
	if err != nil {
		t.Fatalf("append first: %v", err)
	}
	second, err := store.AppendEvent(ctx, event.ItemBought(key, "bob", 100, now))
	if err != nil {
		t.Fatalf("append second: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("sequences = (%d, %d), want (1, 2)", first, second)
	}

	page, err := store.ListEvents(ctx, 10, "")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(page.Events) != 2 {
		t.Fatalf("events len = %d, want 2", len(page.Events))
	}
	if page.Events[0].Type != event.TypeItemListed || page.Events[1].Type != event.TypeItemBought {
		t.Fatalf("events = %+v", page.Events)
	}
	if !page.Events[0].Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v, want %v", page.Events[0].Timestamp, now)
	}
}

func TestAppendEventRejectsUnknownType(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	_, err := store.AppendEvent(context.Background(), event.Event{Type: "bogus", Key: key})
	if err == nil {
		t.Fatal("expected unknown type error")
	}
}

func TestUnpublishedEventsAndMarkPublished(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	now := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)

	first, err := store.AppendEvent(ctx, event.ItemListed(key, "alice", 100, now))
	if err != nil {
		t.Fatalf("append first: %v", err)
	}
	second, err := store.AppendEvent(ctx, event.ItemCanceled(key, "alice", now))
	if err != nil {
		t.Fatalf("append second: %v", err)
	}

	pending, err := store.UnpublishedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("unpublished: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending len = %d, want 2", len(pending))
	}

	if err := store.MarkEventPublished(ctx, first); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	pending, err = store.UnpublishedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("unpublished after mark: %v", err)
	}
	if len(pending) != 1 || pending[0].Seq != second {
		t.Fatalf("pending = %+v, want only seq %d", pending, second)
	}
}

func TestEventPagination(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	now := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := store.AppendEvent(ctx, event.ItemListed(key, "alice", 100, now)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	page, err := store.ListEvents(ctx, 3, "")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(page.Events) != 3 || page.NextPageToken == "" {
		t.Fatalf("page = %d events, token %q", len(page.Events), page.NextPageToken)
	}

	rest, err := store.ListEvents(ctx, 3, page.NextPageToken)
	if err != nil {
		t.Fatalf("list events page 2: %v", err)
	}
	if len(rest.Events) != 2 || rest.NextPageToken != "" {
		t.Fatalf("page 2 = %d events, token %q", len(rest.Events), rest.NextPageToken)
	}
	if rest.Events[0].Seq != 4 {
		t.Fatalf("page 2 first seq = %d, want 4", rest.Events[0].Seq)
	}
}
