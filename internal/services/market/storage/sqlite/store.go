// Package sqlite provides a SQLite-backed marketplace storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/longhan2109/nft-marketplace/internal/market"
	"github.com/longhan2109/nft-marketplace/internal/market/event"
	"github.com/longhan2109/nft-marketplace/internal/platform/storage/sqlitemigrate"
	"github.com/longhan2109/nft-marketplace/internal/services/market/storage"
	"github.com/longhan2109/nft-marketplace/internal/services/market/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists marketplace state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite marketplace store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetListing returns the listing record for the key.
func (s *Store) GetListing(ctx context.Context, key market.AssetKey) (storage.ListingRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ListingRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ListingRecord{}, fmt.Errorf("storage is not configured")
	}
	if err := key.Validate(); err != nil {
		return storage.ListingRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT collection, token_id, price, seller, created_at, updated_at
		   FROM listings
		  WHERE collection = ? AND token_id = ?`,
		key.Collection,
		int64(key.TokenID),
	)
	return scanListing(row)
}

// PutListing creates or replaces the listing record for its key.
func (s *Store) PutListing(ctx context.Context, rec storage.ListingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
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
	if createdAt.IsZero() && updatedAt.IsZero() {
		createdAt = time.Now().UTC()
		updatedAt = createdAt
	} else {
		if createdAt.IsZero() {
			createdAt = updatedAt
		}
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO listings (collection, token_id, price, seller, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (collection, token_id) DO UPDATE SET
		   price = excluded.price,
		   seller = excluded.seller,
		   updated_at = excluded.updated_at`,
		rec.Key.Collection,
		int64(rec.Key.TokenID),
		int64(rec.Price),
		rec.Seller,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put listing: %w", err)
	}
	return nil
}

// DeleteListing removes the listing record for the key.
func (s *Store) DeleteListing(ctx context.Context, key market.AssetKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM listings WHERE collection = ? AND token_id = ?`,
		key.Collection,
		int64(key.TokenID),
	)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListListings returns one page of listing records ordered by key.
func (s *Store) ListListings(ctx context.Context, pageSize int, pageToken string) (storage.ListingPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ListingPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ListingPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.ListingPage{}, fmt.Errorf("page size must be greater than zero")
	}

	afterCollection, afterToken, err := decodeListingToken(pageToken)
	if err != nil {
		return storage.ListingPage{}, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT collection, token_id, price, seller, created_at, updated_at
		   FROM listings
		  WHERE (collection, token_id) > (?, ?)
		  ORDER BY collection ASC, token_id ASC
		  LIMIT ?`,
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
		rec, err := scanListing(rows)
		if err != nil {
			return storage.ListingPage{}, err
		}
		page.Listings = append(page.Listings, rec)
	}
	if err := rows.Err(); err != nil {
		return storage.ListingPage{}, fmt.Errorf("list listings: %w", err)
	}

	if len(page.Listings) > pageSize {
		page.Listings = page.Listings[:pageSize]
		last := page.Listings[pageSize-1]
		page.NextPageToken = encodeListingToken(last.Key)
	}
	return page, nil
}

// GetProceeds returns the seller's withdrawable balance, zero when absent.
func (s *Store) GetProceeds(ctx context.Context, seller string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var balance int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT balance FROM proceeds WHERE seller = ?`, seller)
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get proceeds: %w", err)
	}
	return uint64(balance), nil
}

// CreditProceeds adds amount to the seller's balance.
func (s *Store) CreditProceeds(ctx context.Context, seller string, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return creditProceeds(ctx, s.sqlDB, seller, amount)
}

// DebitProceeds zeroes the seller's balance and returns the drained amount.
// The zero-balance entry is retained.
func (s *Store) DebitProceeds(ctx context.Context, seller string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin debit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var balance int64
	row := tx.QueryRowContext(ctx, `SELECT balance FROM proceeds WHERE seller = ?`, seller)
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("debit proceeds: %w", err)
	}
	if balance == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE proceeds SET balance = 0, updated_at = ? WHERE seller = ?`,
		toMillis(time.Now()),
		seller,
	); err != nil {
		return 0, fmt.Errorf("debit proceeds: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit debit: %w", err)
	}
	return uint64(balance), nil
}

// ApplySale deletes the listing and credits the seller in one transaction.
func (s *Store) ApplySale(ctx context.Context, key market.AssetKey, seller string, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sale: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`DELETE FROM listings WHERE collection = ? AND token_id = ?`,
		key.Collection,
		int64(key.TokenID),
	)
	if err != nil {
		return fmt.Errorf("apply sale: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply sale: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if err := creditProceeds(ctx, tx, seller, amount); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sale: %w", err)
	}
	return nil
}

// RevertSale restores a listing removed by ApplySale and debits the
// seller by the credited amount, in one transaction.
func (s *Store) RevertSale(ctx context.Context, rec storage.ListingRecord, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin revert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO listings (collection, token_id, price, seller, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (collection, token_id) DO UPDATE SET
		   price = excluded.price,
		   seller = excluded.seller,
		   updated_at = excluded.updated_at`,
		rec.Key.Collection,
		int64(rec.Key.TokenID),
		int64(rec.Price),
		rec.Seller,
		toMillis(createdAt),
		toMillis(updatedAt),
	); err != nil {
		return fmt.Errorf("revert sale: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE proceeds SET balance = balance - ?, updated_at = ? WHERE seller = ? AND balance >= ?`,
		int64(amount),
		toMillis(time.Now()),
		rec.Seller,
		int64(amount),
	); err != nil {
		return fmt.Errorf("revert sale: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit revert: %w", err)
	}
	return nil
}

// AppendEvent appends one journal event and returns its sequence number.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if !evt.Type.Valid() {
		return 0, fmt.Errorf("unknown event type %q", evt.Type)
	}

	occurredAt := evt.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	res, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO events (type, collection, token_id, actor, price, occurred_at, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		string(evt.Type),
		evt.Key.Collection,
		int64(evt.Key.TokenID),
		evt.Actor,
		int64(evt.Price),
		toMillis(occurredAt),
	)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	return uint64(seq), nil
}

// ListEvents returns one page of journal events ordered by sequence.
func (s *Store) ListEvents(ctx context.Context, pageSize int, pageToken string) (storage.EventPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.EventPage{}, err
	}
	if s == nil || s.sqlDB == nil {
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

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT seq, type, collection, token_id, actor, price, occurred_at
		   FROM events
		  WHERE seq > ?
		  ORDER BY seq ASC
		  LIMIT ?`,
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT seq, type, collection, token_id, actor, price, occurred_at
		   FROM events
		  WHERE published_at IS NULL
		  ORDER BY seq ASC
		  LIMIT ?`,
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
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE events SET published_at = ? WHERE seq = ? AND published_at IS NULL`,
		toMillis(time.Now()),
		int64(seq),
	)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (storage.ListingRecord, error) {
	var rec storage.ListingRecord
	var tokenID int64
	var price int64
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&rec.Key.Collection,
		&tokenID,
		&price,
		&rec.Seller,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ListingRecord{}, storage.ErrNotFound
		}
		return storage.ListingRecord{}, fmt.Errorf("scan listing: %w", err)
	}
	rec.Key.TokenID = uint64(tokenID)
	rec.Price = uint64(price)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func scanEvent(row rowScanner) (event.Event, error) {
	var evt event.Event
	var seq int64
	var typ string
	var tokenID int64
	var price int64
	var occurredAt int64
	err := row.Scan(&seq, &typ, &evt.Key.Collection, &tokenID, &evt.Actor, &price, &occurredAt)
	if err != nil {
		return event.Event{}, fmt.Errorf("scan event: %w", err)
	}
	evt.Seq = uint64(seq)
	evt.Type = event.Type(typ)
	evt.Key.TokenID = uint64(tokenID)
	evt.Price = uint64(price)
	evt.Timestamp = fromMillis(occurredAt)
	return evt, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func creditProceeds(ctx context.Context, db execer, seller string, amount uint64) error {
	if strings.TrimSpace(seller) == "" {
		return fmt.Errorf("seller is required")
	}
	_, err := db.ExecContext(
		ctx,
		`INSERT INTO proceeds (seller, balance, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (seller) DO UPDATE SET
		   balance = balance + excluded.balance,
		   updated_at = excluded.updated_at`,
		seller,
		int64(amount),
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("credit proceeds: %w", err)
	}
	return nil
}

func encodeListingToken(key market.AssetKey) string {
	return key.Collection + ":" + strconv.FormatUint(key.TokenID, 10)
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
