// Package domain defines the core domain models for estatehub.
package domain

// PropertyType is the kind of property a listing describes.
type PropertyType string

const (
	PropertyTypeFlat       PropertyType = "flat"
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeVilla      PropertyType = "villa"
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeStudio     PropertyType = "studio"
	PropertyTypePenthouse  PropertyType = "penthouse"
	PropertyTypeOffice     PropertyType = "office"
	PropertyTypeTownhouse  PropertyType = "townhouse"
	PropertyTypePlot       PropertyType = "plot"
	PropertyTypeCommercial PropertyType = "commercial"
)

// Furnishing describes how furnished a listing is.
type Furnishing string

const (
	FurnishingFurnished     Furnishing = "furnished"
	FurnishingSemiFurnished Furnishing = "semi-furnished"
	FurnishingUnfurnished   Furnishing = "unfurnished"
)

// ListingStatus represents the market status of a listing.
type ListingStatus string

const (
	ListingStatusSale   ListingStatus = "sale"
	ListingStatusRent   ListingStatus = "rent"
	ListingStatusSold   ListingStatus = "sold"
	ListingStatusRented ListingStatus = "rented"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Action is a room-scoped operation checked by the access policy.
type Action string

const (
	ActionRoomRead      Action = "room.read"
	ActionRoomJoin      Action = "room.join"
	ActionRoomSend      Action = "room.send"
	ActionRoomDelete    Action = "room.delete"
	ActionMessageDelete Action = "message.delete"
)

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeFlat, PropertyTypeApartment, PropertyTypeVilla, PropertyTypeHouse,
		PropertyTypeStudio, PropertyTypePenthouse, PropertyTypeOffice, PropertyTypeTownhouse,
		PropertyTypePlot, PropertyTypeCommercial:
		return true
	}
	return false
}

// Valid reports whether f is a known furnishing value. Empty is allowed.
func (f Furnishing) Valid() bool {
	switch f {
	case "", FurnishingFurnished, FurnishingSemiFurnished, FurnishingUnfurnished:
		return true
	}
	return false
}

// Valid reports whether s is a known listing status.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusSale, ListingStatusRent, ListingStatusSold, ListingStatusRented:
		return true
	}
	return false
}
