package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/xiaot623/estatehub/internal/domain"
)

const sqliteDriverName = "sqlite3_estatehub"

// SQLite's LOWER only folds ASCII; unicode_lower matches containsPattern.
func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("unicode_lower", strings.ToLower, true)
		},
	})
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			listing_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL,
			city TEXT NOT NULL,
			area TEXT NOT NULL DEFAULT '',
			pincode TEXT NOT NULL DEFAULT '',
			property_type TEXT NOT NULL,
			bhk TEXT NOT NULL DEFAULT '',
			area_size REAL NOT NULL DEFAULT 0,
			furnishing TEXT NOT NULL DEFAULT '',
			amenities TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'sale',
			seller_id TEXT NOT NULL,
			is_verified INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_created ON listings(created_at, listing_id)`,
		`CREATE TABLE IF NOT EXISTS chat_rooms (
			room_id TEXT PRIMARY KEY,
			buyer_id TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			participant_lo TEXT NOT NULL,
			participant_hi TEXT NOT NULL,
			listing_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE (participant_lo, participant_hi)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_rooms_buyer ON chat_rooms(buyer_id, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_rooms_seller ON chat_rooms(seller_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			message_id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (room_id) REFERENCES chat_rooms(room_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages(room_id, created_at, message_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const listingColumns = `listing_id, title, description, price, city, area, pincode, property_type,
	bhk, area_size, furnishing, amenities, status, seller_id, is_verified, created_at`

// CreateListing inserts a listing.
func (s *SQLiteStore) CreateListing(ctx context.Context, l *domain.Listing) error {
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
	amenities, err := json.Marshal(nonNilStrings(l.Amenities))
	if err != nil {
		return fmt.Errorf("failed to marshal amenities: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO listings (`+listingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ListingID, l.Title, l.Description, l.Price.String(), l.City, l.Area, l.Pincode, string(l.PropertyType),
		l.BHK, l.AreaSize, string(l.Furnishing), string(amenities), string(l.Status), l.SellerID, l.IsVerified,
		l.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// SearchListings returns listings matching the filter ordered by (created_at, listing_id).
// The price bound is applied in Go since prices are stored as decimal text.
func (s *SQLiteStore) SearchListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE 1=1`
	var args []interface{}

	if filter.City != "" {
		query += ` AND unicode_lower(city) LIKE ? ESCAPE '\'`
		args = append(args, containsPattern(filter.City))
	}
	if filter.Furnishing != "" {
		query += ` AND unicode_lower(furnishing) LIKE ? ESCAPE '\'`
		args = append(args, containsPattern(filter.Furnishing))
	}
	if filter.BHK != "" {
		query += ` AND bhk = ?`
		args = append(args, filter.BHK)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at ASC, listing_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, err
		}
		if filter.MaxPrice.IsPositive() && l.Price.GreaterThan(filter.MaxPrice) {
			continue
		}
		listings = append(listings, *l)
		if filter.Limit > 0 && len(listings) >= filter.Limit {
			break
		}
	}
	return listings, rows.Err()
}

// FindListingByTitle returns the first listing whose title contains title.
func (s *SQLiteStore) FindListingByTitle(ctx context.Context, title string) (*domain.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE unicode_lower(title) LIKE ? ESCAPE '\'
		ORDER BY created_at ASC, listing_id ASC LIMIT 1`,
		containsPattern(title))
	l, err := scanSQLiteListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteListing(row rowScanner) (*domain.Listing, error) {
	var l domain.Listing
	var price, propertyType, furnishing, amenities, status string
	var createdAt int64
	err := row.Scan(&l.ListingID, &l.Title, &l.Description, &price, &l.City, &l.Area, &l.Pincode, &propertyType,
		&l.BHK, &l.AreaSize, &furnishing, &amenities, &status, &l.SellerID, &l.IsVerified, &createdAt)
	if err != nil {
		return nil, err
	}
	if l.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("invalid price for listing %s: %w", l.ListingID, err)
	}
	if err := json.Unmarshal([]byte(amenities), &l.Amenities); err != nil {
		return nil, fmt.Errorf("invalid amenities for listing %s: %w", l.ListingID, err)
	}
	l.PropertyType = domain.PropertyType(propertyType)
	l.Furnishing = domain.Furnishing(furnishing)
	l.Status = domain.ListingStatus(status)
	l.CreatedAt = fromMillis(createdAt)
	return &l, nil
}

const roomColumns = `room_id, buyer_id, seller_id, listing_id, created_at, updated_at`

// GetOrCreateRoom returns the room for the participant pair, inserting it if needed.
func (s *SQLiteStore) GetOrCreateRoom(ctx context.Context, buyerID, sellerID, listingID string) (*domain.Room, bool, error) {
	lo, hi := domain.PairKey(buyerID, sellerID)
	now := time.Now().UTC().Truncate(time.Millisecond).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_rooms (room_id, buyer_id, seller_id, participant_lo, participant_hi, listing_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (participant_lo, participant_hi) DO NOTHING`,
		newRoomID(), buyerID, sellerID, lo, hi, nullString(listingID), now, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert room: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM chat_rooms WHERE participant_lo = ? AND participant_hi = ?`, lo, hi)
	room, err := scanSQLiteRoom(row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load room: %w", err)
	}
	return room, affected == 1, nil
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE room_id = ?`, roomID)
	room, err := scanSQLiteRoom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ListRoomsForUser returns rooms where the user participates, most recently updated first.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID string) ([]domain.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+roomColumns+` FROM chat_rooms WHERE buyer_id = ? OR seller_id = ?
		ORDER BY updated_at DESC, room_id ASC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []domain.Room{}
	for rows.Next() {
		room, err := scanSQLiteRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

func scanSQLiteRoom(row rowScanner) (*domain.Room, error) {
	var room domain.Room
	var listingID sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&room.RoomID, &room.BuyerID, &room.SellerID, &listingID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	room.ListingID = listingID.String
	room.CreatedAt = fromMillis(createdAt)
	room.UpdatedAt = fromMillis(updatedAt)
	return &room, nil
}

// AppendMessage stores a message with a timestamp strictly after the room's latest message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, roomID, senderID, text string) (*domain.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT (SELECT MAX(created_at) FROM chat_messages WHERE room_id = ?) FROM chat_rooms WHERE room_id = ?`,
		roomID, roomID).Scan(&last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read room: %w", err)
	}

	var lastTs time.Time
	if last.Valid {
		lastTs = fromMillis(last.Int64)
	}
	createdAt := nextMessageTime(lastTs, time.Now())
	msg := &domain.Message{
		MessageID: newMessageID(createdAt),
		RoomID:    roomID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: createdAt,
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages (message_id, room_id, sender_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.MessageID, msg.RoomID, msg.SenderID, msg.Text, createdAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_rooms SET updated_at = ? WHERE room_id = ?`, createdAt.UnixMilli(), roomID); err != nil {
		return nil, fmt.Errorf("failed to touch room: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}

// GetMessages returns the room history in send order.
func (s *SQLiteStore) GetMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, room_id, sender_id, text, created_at FROM chat_messages
		WHERE room_id = ? ORDER BY created_at ASC, message_id ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// GetMessage retrieves one message of a room.
func (s *SQLiteStore) GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT message_id, room_id, sender_id, text, created_at FROM chat_messages
		WHERE room_id = ? AND message_id = ?`, roomID, messageID)
	msg, err := scanSQLiteMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func scanSQLiteMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	var createdAt int64
	if err := row.Scan(&msg.MessageID, &msg.RoomID, &msg.SenderID, &msg.Text, &createdAt); err != nil {
		return nil, err
	}
	msg.CreatedAt = fromMillis(createdAt)
	return &msg, nil
}

// DeleteMessage removes a single message. Returns false if it did not exist.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, roomID, messageID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_messages WHERE room_id = ? AND message_id = ?`, roomID, messageID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteRoom removes a room and its history. Returns false if it did not exist.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, roomID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE room_id = ?`, roomID); err != nil {
		return false, fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chat_rooms WHERE room_id = ?`, roomID)
	if err != nil {
		return false, fmt.Errorf("failed to delete room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit room deletion: %w", err)
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
