// Package repository provides persistence for listings and chat history.
package repository

import (
	"context"

	"github.com/xiaot623/estatehub/internal/domain"
)

// ListingStore reads and seeds property listings.
type ListingStore interface {
	// SearchListings returns listings matching the filter ordered by creation time.
	SearchListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error)
	// FindListingByTitle returns the oldest listing whose title contains title
	// (case-insensitive), or nil if none matches.
	FindListingByTitle(ctx context.Context, title string) (*domain.Listing, error)
	CreateListing(ctx context.Context, listing *domain.Listing) error
}

// ChatStore persists chat rooms and their messages.
type ChatStore interface {
	// GetOrCreateRoom returns the room for the unordered (buyer, seller) pair,
	// creating it if needed. created reports whether a new room was inserted.
	GetOrCreateRoom(ctx context.Context, buyerID, sellerID, listingID string) (room *domain.Room, created bool, err error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]domain.Room, error)
	// AppendMessage stores a message at the end of the room history. It
	// returns nil if the room does not exist.
	AppendMessage(ctx context.Context, roomID, senderID, text string) (*domain.Message, error)
	GetMessages(ctx context.Context, roomID string) ([]domain.Message, error)
	GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, roomID, messageID string) (bool, error)
	DeleteRoom(ctx context.Context, roomID string) (bool, error)
}

// Store combines all persistence operations.
type Store interface {
	ListingStore
	ChatStore
	Close() error
}

// Ensure implementations satisfy Store.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
