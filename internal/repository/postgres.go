package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/xiaot623/estatehub/internal/domain"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPool opens and pings a pgx connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// RunPostgresMigrations applies the embedded schema migrations.
func RunPostgresMigrations(databaseURL string) error {
	sub, err := fs.Sub(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	d, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

// NewPostgresStore migrates the database and returns a store backed by a new pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if err := RunPostgresMigrations(databaseURL); err != nil {
		return nil, err
	}
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgListingColumns = `listing_id, title, description, price::text, city, area, pincode, property_type,
	bhk, area_size, furnishing, amenities, status, seller_id, is_verified, created_at`

// CreateListing inserts a listing.
func (s *PostgresStore) CreateListing(ctx context.Context, l *domain.Listing) error {
	if l.ListingID == "" {
		l.ListingID = NewListingID()
	}
	if l.Status == "" {
		l.Status = domain.ListingStatusSale
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	l.CreatedAt = l.CreatedAt.UTC().Truncate(time.Millisecond)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO listings (listing_id, title, description, price, city, area, pincode, property_type,
			bhk, area_size, furnishing, amenities, status, seller_id, is_verified, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		l.ListingID, l.Title, l.Description, l.Price.String(), l.City, l.Area, l.Pincode, string(l.PropertyType),
		l.BHK, l.AreaSize, string(l.Furnishing), nonNilStrings(l.Amenities), string(l.Status), l.SellerID,
		l.IsVerified, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// SearchListings returns listings matching the filter ordered by (created_at, listing_id).
func (s *PostgresStore) SearchListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	query := `SELECT ` + pgListingColumns + ` FROM listings WHERE TRUE`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.City != "" {
		query += ` AND city ILIKE ` + arg(containsPattern(filter.City))
	}
	if filter.Furnishing != "" {
		query += ` AND furnishing ILIKE ` + arg(containsPattern(filter.Furnishing))
	}
	if filter.BHK != "" {
		query += ` AND bhk = ` + arg(filter.BHK)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(filter.Status)
	}
	if filter.MaxPrice.IsPositive() {
		query += ` AND price <= ` + arg(filter.MaxPrice.String()) + `::numeric`
	}
	query += ` ORDER BY created_at ASC, listing_id ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanPgListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// FindListingByTitle returns the first listing whose title contains title.
func (s *PostgresStore) FindListingByTitle(ctx context.Context, title string) (*domain.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgListingColumns+` FROM listings WHERE title ILIKE $1
		ORDER BY created_at ASC, listing_id ASC LIMIT 1`, containsPattern(title))
	l, err := scanPgListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func scanPgListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	var price, propertyType, furnishing, status string
	err := row.Scan(&l.ListingID, &l.Title, &l.Description, &price, &l.City, &l.Area, &l.Pincode, &propertyType,
		&l.BHK, &l.AreaSize, &furnishing, &l.Amenities, &status, &l.SellerID, &l.IsVerified, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if l.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("invalid price for listing %s: %w", l.ListingID, err)
	}
	l.PropertyType = domain.PropertyType(propertyType)
	l.Furnishing = domain.Furnishing(furnishing)
	l.Status = domain.ListingStatus(status)
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

// GetOrCreateRoom returns the room for the participant pair, inserting it if needed.
func (s *PostgresStore) GetOrCreateRoom(ctx context.Context, buyerID, sellerID, listingID string) (*domain.Room, bool, error) {
	lo, hi := domain.PairKey(buyerID, sellerID)
	now := time.Now().UTC().Truncate(time.Millisecond)
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO chat_rooms (room_id, buyer_id, seller_id, participant_lo, participant_hi, listing_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (participant_lo, participant_hi) DO NOTHING`,
		newRoomID(), buyerID, sellerID, lo, hi, nullString(listingID), now)
	if err != nil {
		return nil, false, fmt.Errorf("insert room: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM chat_rooms WHERE participant_lo = $1 AND participant_hi = $2`, lo, hi)
	room, err := scanPgRoom(row)
	if err != nil {
		return nil, false, fmt.Errorf("load room: %w", err)
	}
	return room, tag.RowsAffected() == 1, nil
}

// GetRoom retrieves a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE room_id = $1`, roomID)
	room, err := scanPgRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ListRoomsForUser returns rooms where the user participates, most recently updated first.
func (s *PostgresStore) ListRoomsForUser(ctx context.Context, userID string) ([]domain.Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+roomColumns+` FROM chat_rooms WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY updated_at DESC, room_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []domain.Room{}
	for rows.Next() {
		room, err := scanPgRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

func scanPgRoom(row pgx.Row) (*domain.Room, error) {
	var room domain.Room
	var listingID *string
	if err := row.Scan(&room.RoomID, &room.BuyerID, &room.SellerID, &listingID, &room.CreatedAt, &room.UpdatedAt); err != nil {
		return nil, err
	}
	if listingID != nil {
		room.ListingID = *listingID
	}
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	return &room, nil
}

// AppendMessage stores a message while holding the room row lock so
// concurrent appends observe each other's timestamps.
func (s *PostgresStore) AppendMessage(ctx context.Context, roomID, senderID, text string) (*domain.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT room_id FROM chat_rooms WHERE room_id = $1 FOR UPDATE`, roomID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock room: %w", err)
	}

	var last *time.Time
	if err := tx.QueryRow(ctx,
		`SELECT MAX(created_at) FROM chat_messages WHERE room_id = $1`, roomID).Scan(&last); err != nil {
		return nil, fmt.Errorf("read latest message: %w", err)
	}
	var lastTs time.Time
	if last != nil {
		lastTs = *last
	}
	createdAt := nextMessageTime(lastTs, time.Now())
	msg := &domain.Message{
		MessageID: newMessageID(createdAt),
		RoomID:    roomID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: createdAt,
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO chat_messages (message_id, room_id, sender_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		msg.MessageID, msg.RoomID, msg.SenderID, msg.Text, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE chat_rooms SET updated_at = $1 WHERE room_id = $2`, createdAt, roomID); err != nil {
		return nil, fmt.Errorf("touch room: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit message: %w", err)
	}
	return msg, nil
}

// GetMessages returns the room history in send order.
func (s *PostgresStore) GetMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT message_id, room_id, sender_id, text, created_at FROM chat_messages
		WHERE room_id = $1 ORDER BY created_at ASC, message_id ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		msg, err := scanPgMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// GetMessage retrieves one message of a room.
func (s *PostgresStore) GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT message_id, room_id, sender_id, text, created_at FROM chat_messages
		WHERE room_id = $1 AND message_id = $2`, roomID, messageID)
	msg, err := scanPgMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func scanPgMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	if err := row.Scan(&msg.MessageID, &msg.RoomID, &msg.SenderID, &msg.Text, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return &msg, nil
}

// DeleteMessage removes a single message.
func (s *PostgresStore) DeleteMessage(ctx context.Context, roomID, messageID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chat_messages WHERE room_id = $1 AND message_id = $2`, roomID, messageID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteRoom removes a room; its messages go with it through the cascade.
func (s *PostgresStore) DeleteRoom(ctx context.Context, roomID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_rooms WHERE room_id = $1`, roomID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
