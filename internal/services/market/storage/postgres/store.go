// Package postgres provides a pgx-backed marketplace storage implementation.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longhan2109/nft-marketplace/internal/market"
	"github.com/longhan2109/nft-marketplace/internal/market/event"
	"github.com/longhan2109/nft-marketplace/internal/services/market/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
    collection TEXT NOT NULL,
    token_id BIGINT NOT NULL,
    price BIGINT NOT NULL,
    seller TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (collection, token_id)
);

CREATE TABLE IF NOT EXISTS proceeds (
    seller TEXT PRIMARY KEY,
    balance BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    seq BIGSERIAL PRIMARY KEY,
    type TEXT NOT NULL,
    collection TEXT NOT NULL,
    token_id BIGINT NOT NULL,
    actor TEXT NOT NULL,
    price BIGINT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_events_unpublished ON events (seq) WHERE published_at IS NULL;
`

// Store persists marketplace state in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and ensures the marketplace schema exists.
func Open(ctx context.Context, connString string) (*Store, error) {
	if strings.TrimSpace(connString) == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// GetListing returns the listing record for the key.
func (s *Store) GetListing(ctx context.Context, key market.AssetKey) (storage.ListingRecord, error) {
	if s == nil || s.pool == nil {
		return storage.ListingRecord{}, fmt.Errorf("storage is not configured")
	}
	if err := key.Validate(); err != nil {
		return storage.ListingRecord{}, err
	}

	var rec storage.ListingRecord
	var tokenID int64
	var price int64
	err := s.pool.QueryRow(
		ctx,
		`SELECT collection, token_id, price, seller, created_at, updated_at
		   FROM listings
		  WHERE collection = $1 AND token_id = $2`,
		key.Collection,
		int64(key.TokenID),
	).Scan(&rec.Key.Collection, &tokenID, &price, &rec.Seller, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ListingRecord{}, storage.ErrNotFound
		}
		return storage.ListingRecord{}, fmt.Errorf("get listing: %w", err)
	}
	rec.Key.TokenID = uint64(tokenID)
	rec.Price = uint64(price)
	return rec, nil
}

// PutListing creates or replaces the listing record for its key.
func (s *Store) PutListing(ctx context.Context, rec storage.ListingRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := rec.Key.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.Seller) == "" {
		return fmt.Errorf("seller is required")
	}

	createdAt := rec.CreatedAt.UTC()
	updatedAt := rec.UpdatedAt.UTC()
	now := time.Now().UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO listings (collection, token_id, price, seller, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (collection, token_id) DO UPDATE SET
		   price = EXCLUDED.price,
		   seller = EXCLUDED.seller,
		   updated_at = EXCLUDED.updated_at`,
		rec.Key.Collection,
		int64(rec.Key.TokenID),
		int64(rec.Price),
		rec.Seller,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("put listing: %w", err)
	}
	return nil
}

// DeleteListing removes the listing record for the key.
func (s *Store) DeleteListing(ctx context.Context, key market.AssetKey) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}

	tag, err := s.pool.Exec(
		ctx,
		`DELETE FROM listings WHERE collection = $1 AND token_id = $2`,
		key.Collection,
		int64(key.TokenID),
	)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListListings returns one page of listing records ordered by key.
func (s *Store) ListListings(ctx context.Context, pageSize int, pageToken string) (storage.ListingPage, error) {
	if s == nil || s.pool == nil {
		return storage.ListingPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.ListingPage{}, fmt.Errorf("page size must be greater than zero")
	}

	afterCollection, afterToken, err := decodeListingToken(pageToken)
	if err != nil {
		return storage.ListingPage{}, err
	}

	rows, err := s.pool.Query(
		ctx,
		`SELECT collection, token_id, price, seller, created_at, updated_at
		   FROM listings
		  WHERE (collection, token_id) > ($1, $2)
		  ORDER BY collection ASC, token_id ASC
		  LIMIT $3`,
		afterCollection,
		afterToken,
		pageSize+1,
	)
	if err != nil {
		return storage.ListingPage{}, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	page := storage.ListingPage{
		Listings: make([]storage.ListingRecord, 0, pageSize),
	}
	for rows.Next() {
		var rec storage.ListingRecord
		var tokenID int64
		var price int64
		if err := rows.Scan(&rec.Key.Collection, &tokenID, &price, &rec.Seller, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return storage.ListingPage{}, fmt.Errorf("scan listing: %w", err)
		}
		rec.Key.TokenID = uint64(tokenID)
		rec.Price = uint64(price)
		page.Listings = append(page.Listings, rec)
	}
	if err := rows.Err(); err != nil {
		return storage.ListingPage{}, fmt.Errorf("list listings: %w", err)
	}

	if len(page.Listings) > pageSize {
		page.Listings = page.Listings[:pageSize]
		last := page.Listings[pageSize-1]
		page.NextPageToken = last.Key.Collection + ":" + strconv.FormatUint(last.Key.TokenID, 10)
	}
	return page, nil
}

// GetProceeds returns the seller's withdrawable balance, zero when absent.
func (s *Store) GetProceeds(ctx context.Context, seller string) (uint64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var balance int64
	err := s.pool.QueryRow(ctx, `SELECT balance FROM proceeds WHERE seller = $1`, seller).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get proceeds: %w", err)
	}
	return uint64(balance), nil
}

// CreditProceeds adds amount to the seller's balance.
func (s *Store) CreditProceeds(ctx context.Context, seller string, amount uint64) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(seller) == "" {
		return fmt.Errorf("seller is required")
	}
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO proceeds (seller, balance, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (seller) DO UPDATE SET
		   balance = proceeds.balance + EXCLUDED.balance,
		   updated_at = EXCLUDED.updated_at`,
		seller,
		int64(amount),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("credit proceeds: %w", err)
	}
	return nil
}

// DebitProceeds zeroes the seller's balance and returns the drained amount.
func (s *Store) DebitProceeds(ctx context.Context, seller string) (uint64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	// UPDATE ... RETURNING yields the new row, so join against a locked
	// snapshot of the old row to return the drained amount.
	var balance int64
	err := s.pool.QueryRow(
		ctx,
		`UPDATE proceeds p
		    SET balance = 0, updated_at = $1
		   FROM (SELECT seller, balance FROM proceeds WHERE seller = $2 FOR UPDATE) old
		  WHERE p.seller = old.seller AND old.balance > 0
		  RETURNING old.balance`,
		time.Now().UTC(),
		seller,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("debit proceeds: %w", err)
	}
	return uint64(balance), nil
}

// ApplySale deletes the listing and credits the seller in one transaction.
func (s *Store) ApplySale(ctx context.Context, key market.AssetKey, seller string, amount uint64) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin sale: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(
		ctx,
		`DELETE FROM listings WHERE collection = $1 AND token_id = $2`,
		key.Collection,
		int64(key.TokenID),
	)
	if err != nil {
		return fmt.Errorf("apply sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.Exec(
		ctx,
		`INSERT INTO proceeds (seller, balance, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (seller) DO UPDATE SET
		   balance = proceeds.balance + EXCLUDED.balance,
		   updated_at = EXCLUDED.updated_at`,
		seller,
		int64(amount),
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("apply sale: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sale: %w", err)
	}
	return nil
}

// RevertSale restores a listing removed by ApplySale and debits the
// seller by the credited amount, in one transaction.
func (s *Store) RevertSale(ctx context.Context, rec storage.ListingRecord, amount uint64) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin revert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	if _, err := tx.Exec(
		ctx,
		`INSERT INTO listings (collection, token_id, price, seller, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (collection, token_id) DO UPDATE SET
		   price = EXCLUDED.price,
		   seller = EXCLUDED.seller,
		   updated_at = EXCLUDED.updated_at`,
		rec.Key.Collection,
		int64(rec.Key.TokenID),
		int64(rec.Price),
		rec.Seller,
		createdAt,
		updatedAt,
	); err != nil {
		return fmt.Errorf("revert sale: %w", err)
	}

	if _, err := tx.Exec(
		ctx,
		`UPDATE proceeds SET balance = balance - $1, updated_at = $2
		  WHERE seller = $3 AND balance >= $1`,
		int64(amount),
		now,
		rec.Seller,
	); err != nil {
		return fmt.Errorf("revert sale: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit revert: %w", err)
	}
	return nil
}

// AppendEvent appends one journal event and returns its sequence number.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (uint64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if !evt.Type.Valid() {
		return 0, fmt.Errorf("unknown event type %q", evt.Type)
	}

	occurredAt := evt.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	var seq int64
	err := s.pool.QueryRow(
		ctx,
		`INSERT INTO events (type, collection, token_id, actor, price, occurred_at, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULL)
		 RETURNING seq`,
		string(evt.Type),
		evt.Key.Collection,
		int64(evt.Key.TokenID),
		evt.Actor,
		int64(evt.Price),
		occurredAt,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	return uint64(seq), nil
}

// ListEvents returns one page of journal events ordered by sequence.
func (s *Store) ListEvents(ctx context.Context, pageSize int, pageToken string) (storage.EventPage, error) {
	if s == nil || s.pool == nil {
		return storage.EventPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.EventPage{}, fmt.Errorf("page size must be greater than zero")
	}

	afterSeq := int64(0)
	if token := strings.TrimSpace(pageToken); token != "" {
		parsed, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return storage.EventPage{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		afterSeq = parsed
	}

	rows, err := s.pool.Query(
		ctx,
		`SELECT seq, type, collection, token_id, actor, price, occurred_at
		   FROM events
		  WHERE seq > $1
		  ORDER BY seq ASC
		  LIMIT $2`,
		afterSeq,
		pageSize+1,
	)
	if err != nil {
		return storage.EventPage{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	page := storage.EventPage{
		Events: make([]event.Event, 0, pageSize),
	}
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return storage.EventPage{}, err
		}
		page.Events = append(page.Events, evt)
	}
	if err := rows.Err(); err != nil {
		return storage.EventPage{}, fmt.Errorf("list events: %w", err)
	}

	if len(page.Events) > pageSize {
		page.Events = page.Events[:pageSize]
		page.NextPageToken = strconv.FormatUint(page.Events[pageSize-1].Seq, 10)
	}
	return page, nil
}

// UnpublishedEvents returns up to limit events not yet broadcast.
func (s *Store) UnpublishedEvents(ctx context.Context, limit int) ([]event.Event, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.pool.Query(
		ctx,
		`SELECT seq, type, collection, token_id, actor, price, occurred_at
		   FROM events
		  WHERE published_at IS NULL
		  ORDER BY seq ASC
		  LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("unpublished events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unpublished events: %w", err)
	}
	return events, nil
}

// MarkEventPublished records the broadcast time for one event.
func (s *Store) MarkEventPublished(ctx context.Context, seq uint64) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.pool.Exec(
		ctx,
		`UPDATE events SET published_at = $1 WHERE seq = $2 AND published_at IS NULL`,
		time.Now().UTC(),
		int64(seq),
	)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}

func scanEvent(rows pgx.Rows) (event.Event, error) {
	var evt event.Event
	var seq int64
	var typ string
	var tokenID int64
	var price int64
	if err := rows.Scan(&seq, &typ, &evt.Key.Collection, &tokenID, &evt.Actor, &price, &evt.Timestamp); err != nil {
		return event.Event{}, fmt.Errorf("scan event: %w", err)
	}
	evt.Seq = uint64(seq)
	evt.Type = event.Type(typ)
	evt.Key.TokenID = uint64(tokenID)
	evt.Price = uint64(price)
	return evt, nil
}

func decodeListingToken(token string) (string, int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", -1, nil
	}
	idx := strings.LastIndex(token, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("invalid page token %q", token)
	}
	tokenID, err := strconv.ParseInt(token[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid page token %q", token)
	}
	return token[:idx], tokenID, nil
}
