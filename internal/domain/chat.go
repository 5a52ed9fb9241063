package domain

import "time"

// Room is the persisted conversation between one buyer and one seller.
type Room struct {
	RoomID    string    `json:"room_id"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	ListingID string    `json:"listing_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages,omitempty"`
}

// Message is a single chat message inside a room.
type Message struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is the buyer or the seller of the room.
func (r *Room) HasParticipant(userID string) bool {
	return userID != "" && (r.BuyerID == userID || r.SellerID == userID)
}

// PairKey returns the participant pair in a stable order so that
// (a, b) and (b, a) identify the same room.
func PairKey(a, b string) (lo, hi string) {
	if a <= b {
		return a, b
	}
	return b, a
}
