package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a property listing as stored by the listing store.
type Listing struct {
	ListingID    string          `json:"id" yaml:"id"`
	Title        string          `json:"title" yaml:"title"`
	Description  string          `json:"description" yaml:"description"`
	Price        decimal.Decimal `json:"price" yaml:"price"`
	City         string          `json:"city" yaml:"city"`
	Area         string          `json:"area" yaml:"area"`
	Pincode      string          `json:"pincode" yaml:"pincode"`
	PropertyType PropertyType    `json:"propertyType" yaml:"propertyType"`
	BHK          string          `json:"bhk,omitempty" yaml:"bhk"`
	AreaSize     float64         `json:"areaSize,omitempty" yaml:"areaSize"`
	Furnishing   Furnishing      `json:"furnishing,omitempty" yaml:"furnishing"`
	Amenities    []string        `json:"amenities" yaml:"amenities"`
	Status       ListingStatus   `json:"status" yaml:"status"`
	SellerID     string          `json:"sellerId" yaml:"sellerId"`
	IsVerified   bool            `json:"isVerified" yaml:"isVerified"`
	CreatedAt    time.Time       `json:"createdAt" yaml:"-"`
}

// ListingFilter selects listings. Zero-valued fields are ignored.
type ListingFilter struct {
	City       string          // case-insensitive substring
	Furnishing string          // case-insensitive substring
	BHK        string          // exact
	Status     string          // exact
	MaxPrice   decimal.Decimal // inclusive upper bound when positive
	Limit      int
}

// ListingSummary is the field subset returned by listing search.
type ListingSummary struct {
	ListingID    string          `json:"id"`
	Title        string          `json:"title"`
	Price        decimal.Decimal `json:"price"`
	City         string          `json:"city"`
	BHK          string          `json:"bhk,omitempty"`
	PropertyType PropertyType    `json:"propertyType"`
	Status       ListingStatus   `json:"status"`
	Amenities    []string        `json:"amenities"`
	Description  string          `json:"description"`
}

// ListingDetails is the field subset returned by a listing detail lookup.
type ListingDetails struct {
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	City        string          `json:"city"`
	BHK         string          `json:"bhk,omitempty"`
	Amenities   []string        `json:"amenities"`
	Description string          `json:"description"`
	Furnishing  Furnishing      `json:"furnishing,omitempty"`
}

// Summary returns the search projection of the listing.
func (l *Listing) Summary() ListingSummary {
	return ListingSummary{
		ListingID:    l.ListingID,
		Title:        l.Title,
		Price:        l.Price,
		City:         l.City,
		BHK:          l.BHK,
		PropertyType: l.PropertyType,
		Status:       l.Status,
		Amenities:    nonNil(l.Amenities),
		Description:  l.Description,
	}
}

// Details returns the detail projection of the listing.
func (l *Listing) Details() ListingDetails {
	return ListingDetails{
		Title:       l.Title,
		Price:       l.Price,
		City:        l.City,
		BHK:         l.BHK,
		Amenities:   nonNil(l.Amenities),
		Description: l.Description,
		Furnishing:  l.Furnishing,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
