package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/estatehub/internal/domain"
	"github.com/xiaot623/estatehub/internal/policy"
	"github.com/xiaot623/estatehub/internal/protocol"
	"github.com/xiaot623/estatehub/internal/telemetry"
)

// StartRoom returns the caller's room with the seller, creating it on first contact.
func (s *Service) StartRoom(ctx context.Context, buyerID string, req domain.StartRoomRequest) (*domain.Room, error) {
	if req.SellerID == "" {
		return nil, fmt.Errorf("%w: seller_id is required", domain.ErrInvalidArgument)
	}
	if req.SellerID == buyerID {
		return nil, fmt.Errorf("%w: cannot start a chat with yourself", domain.ErrInvalidArgument)
	}
	room, created, err := s.store.GetOrCreateRoom(ctx, buyerID, req.SellerID, req.ListingID)
	if err != nil {
		return nil, fmt.Errorf("failed to start room: %w", err)
	}
	if created {
		s.logger.Info("chat room created", "room_id", room.RoomID, "buyer_id", room.BuyerID, "seller_id", room.SellerID)
	}
	return room, nil
}

// ListRooms returns the caller's rooms, most recently active first.
func (s *Service) ListRooms(ctx context.Context, userID string) ([]domain.Room, error) {
	rooms, err := s.store.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// GetRoom returns a room with its ordered history.
func (s *Service) GetRoom(ctx context.Context, userID, roomID string) (*domain.Room, error) {
	room, err := s.authorizeRoom(ctx, userID, roomID, domain.ActionRoomRead)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.GetMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	room.Messages = messages
	return room, nil
}

// GetMessages returns the ordered history of a room.
func (s *Service) GetMessages(ctx context.Context, userID, roomID string) ([]domain.Message, error) {
	if _, err := s.authorizeRoom(ctx, userID, roomID, domain.ActionRoomRead); err != nil {
		return nil, err
	}
	messages, err := s.store.GetMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// AuthorizeJoin checks that the user may subscribe to the room's live channel.
func (s *Service) AuthorizeJoin(ctx context.Context, userID, roomID string) error {
	_, err := s.authorizeRoom(ctx, userID, roomID, domain.ActionRoomJoin)
	return err
}

// SendMessage persists a message and then relays it to the room channel.
// A relay failure does not fail the send.
func (s *Service) SendMessage(ctx context.Context, userID, roomID, text string) (*domain.SendMessageResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidArgument)
	}
	room, err := s.authorizeRoom(ctx, userID, roomID, domain.ActionRoomSend)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.AppendMessage(ctx, roomID, userID, text)
	if err != nil {
		s.metrics.ChatMessage(telemetry.OutcomeError)
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	if msg == nil {
		s.metrics.ChatMessage(telemetry.OutcomeError)
		return nil, domain.ErrRoomNotFound
	}
	s.metrics.ChatMessage(telemetry.OutcomeOK)
	room.UpdatedAt = msg.CreatedAt

	s.broadcast(roomID, &protocol.ChatMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeMessage, Ts: time.Now().UnixMilli(), RoomID: roomID},
		Message:     msg,
	})

	return &domain.SendMessageResponse{Room: room, Message: msg}, nil
}

func (s *Service) broadcast(channel string, v interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(channel, v); err != nil {
		s.metrics.Broadcast(telemetry.OutcomeError)
		s.logger.Warn("broadcast failed", "channel", channel, "error", err)
		return
	}
	s.metrics.Broadcast(telemetry.OutcomeOK)
}

// DeleteMessage removes a message. Only its sender may delete it; copies
// already delivered live are not retracted.
func (s *Service) DeleteMessage(ctx context.Context, userID, roomID, messageID string) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return domain.ErrRoomNotFound
	}
	msg, err := s.store.GetMessage(ctx, roomID, messageID)
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}
	if msg == nil {
		return domain.ErrMessageNotFound
	}
	if err := s.authorize(ctx, policy.Input{
		Action: domain.ActionMessageDelete, UserID: userID, Room: room, Message: msg,
	}); err != nil {
		return err
	}

	deleted, err := s.store.DeleteMessage(ctx, roomID, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if !deleted {
		return domain.ErrMessageNotFound
	}
	return nil
}

// DeleteRoom removes a room with its history and drops its live subscriptions.
func (s *Service) DeleteRoom(ctx context.Context, userID, roomID string) error {
	if _, err := s.authorizeRoom(ctx, userID, roomID, domain.ActionRoomDelete); err != nil {
		return err
	}
	deleted, err := s.store.DeleteRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if !deleted {
		return domain.ErrRoomNotFound
	}
	if closer, ok := s.publisher.(channelCloser); ok {
		closer.CloseChannel(roomID)
	}
	s.logger.Info("chat room deleted", "room_id", roomID, "user_id", userID)
	return nil
}

// Publish pushes an arbitrary event onto a channel and reports whether
// anyone was subscribed.
func (s *Service) Publish(channel string, event interface{}) (bool, error) {
	if channel == "" {
		return false, fmt.Errorf("%w: channel is required", domain.ErrInvalidArgument)
	}
	if s.publisher == nil {
		return false, nil
	}
	delivered := true
	if checker, ok := s.publisher.(subscriberChecker); ok {
		delivered = checker.HasSubscribers(channel)
	}
	if err := s.publisher.Publish(channel, event); err != nil {
		s.metrics.Broadcast(telemetry.OutcomeError)
		return false, fmt.Errorf("failed to publish: %w", err)
	}
	s.metrics.Broadcast(telemetry.OutcomeOK)
	return delivered, nil
}

func (s *Service) authorizeRoom(ctx context.Context, userID, roomID string, action domain.Action) (*domain.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return nil, domain.ErrRoomNotFound
	}
	if err := s.authorize(ctx, policy.Input{Action: action, UserID: userID, Room: room}); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Service) authorize(ctx context.Context, in policy.Input) error {
	decision, err := s.policyEngine.Authorize(ctx, in)
	if err != nil {
		return err
	}
	if !decision.Allow {
		s.logger.Info("access denied", "action", in.Action, "user_id", in.UserID, "reason", decision.Reason)
		return fmt.Errorf("%w: %s", domain.ErrForbidden, decision.Reason)
	}
	return nil
}
