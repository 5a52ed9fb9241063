package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xiaot623/estatehub/internal/domain"
	"github.com/xiaot623/estatehub/internal/repository"
)

const (
	SearchListingsName    = "search_listings"
	GetListingDetailsName = "get_listing_details"

	// NoPropertiesFound is returned by search when nothing matches.
	NoPropertiesFound = "No properties found"
	// PropertyNotFound is returned by the detail lookup when no title matches.
	PropertyNotFound = "Property not found"

	searchLimit = 5
)

// SearchListingsArgs are the search_listings arguments.
type SearchListingsArgs struct {
	City       string  `json:"city,omitempty" jsonschema:"city name, matched case-insensitively"`
	MaxPrice   float64 `json:"maxPrice,omitempty" jsonschema:"maximum price, inclusive"`
	BHK        string  `json:"bhk,omitempty" jsonschema:"number of bedrooms, for example 2"`
	Status     string  `json:"status,omitempty" jsonschema:"one of sale, rent, sold, rented"`
	Furnishing string  `json:"furnishing,omitempty" jsonschema:"furnished, semi-furnished or unfurnished"`
}

// GetListingDetailsArgs are the get_listing_details arguments.
type GetListingDetailsArgs struct {
	Title string `json:"title" jsonschema:"full or partial listing title"`
}

// Listings exposes the read-only listing capabilities.
type Listings struct {
	store repository.ListingStore
}

// NewListings creates the listing capabilities over a store.
func NewListings(store repository.ListingStore) *Listings {
	return &Listings{store: store}
}

// Search returns up to five listing summaries as JSON, or NoPropertiesFound.
func (l *Listings) Search(ctx context.Context, args SearchListingsArgs) (string, error) {
	filter := domain.ListingFilter{
		City:       args.City,
		Furnishing: args.Furnishing,
		BHK:        args.BHK,
		Status:     args.Status,
		Limit:      searchLimit,
	}
	if args.MaxPrice > 0 {
		filter.MaxPrice = decimal.NewFromFloat(args.MaxPrice)
	}
	listings, err := l.store.SearchListings(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("failed to search listings: %w", err)
	}
	if len(listings) == 0 {
		return NoPropertiesFound, nil
	}
	summaries := make([]domain.ListingSummary, 0, len(listings))
	for i := range listings {
		summaries = append(summaries, listings[i].Summary())
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Details returns the details of the first listing matching the title, or PropertyNotFound.
func (l *Listings) Details(ctx context.Context, args GetListingDetailsArgs) (string, error) {
	if args.Title == "" {
		return PropertyNotFound, nil
	}
	listing, err := l.store.FindListingByTitle(ctx, args.Title)
	if err != nil {
		return "", fmt.Errorf("failed to find listing: %w", err)
	}
	if listing == nil {
		return PropertyNotFound, nil
	}
	data, err := json.Marshal(listing.Details())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RegisterListingTools registers search_listings and get_listing_details.
func RegisterListingTools(r *Registry, store repository.ListingStore) error {
	l := NewListings(store)
	search, err := NewTool(SearchListingsName, "Search property listings by city, maximum price, bhk, status and furnishing", l.Search)
	if err != nil {
		return err
	}
	details, err := NewTool(GetListingDetailsName, "Get full details of a property using its title", l.Details)
	if err != nil {
		return err
	}
	if err := r.Register(search); err != nil {
		return err
	}
	return r.Register(details)
}
