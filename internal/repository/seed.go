package repository

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/estatehub/internal/domain"
)

// seedFile is the YAML layout accepted by DecodeListings.
type seedFile struct {
	Listings []domain.Listing `yaml:"listings"`
}

// DecodeListings reads listings from YAML and checks their enum fields.
func DecodeListings(r io.Reader) ([]domain.Listing, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	for i := range f.Listings {
		l := &f.Listings[i]
		if l.Title == "" {
			return nil, fmt.Errorf("listing %d: title is required", i)
		}
		if l.Status == "" {
			l.Status = domain.ListingStatusSale
		}
		if !l.PropertyType.Valid() {
			return nil, fmt.Errorf("listing %q: unknown propertyType %q", l.Title, l.PropertyType)
		}
		if !l.Furnishing.Valid() {
			return nil, fmt.Errorf("listing %q: unknown furnishing %q", l.Title, l.Furnishing)
		}
		if !l.Status.Valid() {
			return nil, fmt.Errorf("listing %q: unknown status %q", l.Title, l.Status)
		}
		if l.Price.IsNegative() {
			return nil, fmt.Errorf("listing %q: price must not be negative", l.Title)
		}
	}
	return f.Listings, nil
}

// SeedListings inserts listings into the store in order.
func SeedListings(ctx context.Context, store ListingStore, listings []domain.Listing) error {
	for i := range listings {
		if err := store.CreateListing(ctx, &listings[i]); err != nil {
			return fmt.Errorf("failed to seed %q: %w", listings[i].Title, err)
		}
	}
	return nil
}
