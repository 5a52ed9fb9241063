package domain

// AskRequest is the assistant request body.
type AskRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// AskResponse is the assistant response body.
type AskResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id,omitempty"`
}

// StartRoomRequest opens (or reopens) a room with a seller.
type StartRoomRequest struct {
	SellerID  string `json:"seller_id"`
	ListingID string `json:"listing_id,omitempty"`
}

// SendMessageRequest appends a message to a room.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessageResponse carries the room and the stored message.
type SendMessageResponse struct {
	Room    *Room    `json:"room"`
	Message *Message `json:"message"`
}

// PublishRequest pushes an arbitrary event onto a live channel.
type PublishRequest struct {
	Channel string                 `json:"channel"`
	Event   map[string]interface{} `json:"event"`
}

// PublishResponse reports whether any subscriber was connected.
type PublishResponse struct {
	OK        bool `json:"ok"`
	Delivered bool `json:"delivered"`
}
