package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/estatehub/internal/adapter/llm"
	"github.com/xiaot623/estatehub/internal/assistant"
	"github.com/xiaot623/estatehub/internal/domain"
	"github.com/xiaot623/estatehub/internal/policy"
	"github.com/xiaot623/estatehub/internal/protocol"
	"github.com/xiaot623/estatehub/internal/repository"
	"github.com/xiaot623/estatehub/internal/telemetry"
	"github.com/xiaot623/estatehub/internal/tools"
)

type published struct {
	channel string
	payload interface{}
	stored  int
}

type recordingPublisher struct {
	mu       sync.Mutex
	store    repository.ChatStore
	events   []published
	closed   []string
	failWith error
}

func (p *recordingPublisher) Publish(channel string, v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	messages, _ := p.store.GetMessages(context.Background(), channel)
	p.events = append(p.events, published{channel: channel, payload: v, stored: len(messages)})
	return nil
}

func (p *recordingPublisher) CloseChannel(channel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, channel)
}

func newTestService(t *testing.T, client llm.LLMClient) (*Service, *recordingPublisher) {
	t.Helper()
	ctx := context.Background()
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)

	if client == nil {
		client = llm.NewMockClient()
	}
	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterListingTools(registry, store))
	metrics := telemetry.NewMetrics()
	agent := assistant.New(client, registry, assistant.NewMemory(50), assistant.Config{Model: "m", MaxTurns: 3}, nil, metrics)

	pub := &recordingPublisher{store: store}
	return New(store, agent, engine, pub, nil, metrics), pub
}

func TestChatBetweenBuyerAndSeller(t *testing.T) {
	svc, pub := newTestService(t, nil)
	ctx := context.Background()

	room, err := svc.StartRoom(ctx, "A", domain.StartRoomRequest{SellerID: "B", ListingID: "l1"})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, "A", room.RoomID, "hi")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "B", room.RoomID, "hello")
	require.NoError(t, err)

	got, err := svc.GetRoom(ctx, "A", room.RoomID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "A", got.Messages[0].SenderID)
	assert.Equal(t, "hi", got.Messages[0].Text)
	assert.Equal(t, "B", got.Messages[1].SenderID)
	assert.Equal(t, "hello", got.Messages[1].Text)

	require.Len(t, pub.events, 2)
	for i, ev := range pub.events {
		assert.Equal(t, room.RoomID, ev.channel)
		// every broadcast happens after its message is stored
		assert.Equal(t, i+1, ev.stored)
		msg, ok := ev.payload.(*protocol.ChatMessage)
		require.True(t, ok)
		assert.Equal(t, protocol.TypeMessage, msg.Type)
		assert.Equal(t, got.Messages[i].MessageID, msg.Message.MessageID)
	}
}

func TestStartRoomIsIdempotentAcrossRoles(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.StartRoom(ctx, "A", domain.StartRoomRequest{SellerID: "B"})
	require.NoError(t, err)
	second, err := svc.StartRoom(ctx, "B", domain.StartRoomRequest{SellerID: "A"})
	require.NoError(t, err)
	assert.Equal(t, first.RoomID, second.RoomID)

	rooms, err := svc.ListRooms(ctx, "B")
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestStartRoomValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.StartRoom(ctx, "A", domain.StartRoomRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.StartRoom(ctx, "A", domain.StartRoomRequest{SellerID: "A"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNonParticipantIsRejected(t *testing.T) {
	svc, pub := newTestService(t, nil)
	ctx := context.Background()

	room, err := svc.StartRoom(ctx, "A", domain.StartRoomRequest{SellerID: "B"})
	require.NoError(t, err)

	_, err = svc.GetRoom(ctx, "C", room.RoomID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.SendMessage(ctx, "C", room.RoomID, "let me in")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, svc.AuthorizeJoin(ctx, "C", room.RoomID), domain.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteRoom(ctx, "C", room.RoomID), domain.ErrForbidden)
	assert.Empty(t, pub.events)

	assert.NoError(t, svc.AuthorizeJoin(ctx, "B", room.RoomID))
}

func TestUnknownRoom(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.GetRoom(ctx, "A", "room_missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = svc.SendMessage(ctx, "A", "room_missing", "hi")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	room, err := svc.StartRoom(ctx, "A", domain.StartRoomRequest{SellerID: "B"})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, "A", room.RoomID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSendMessageSurvivesBroadcastFailure(t *testing.T) {
	svc, pub := newTestService(t, nil)
	ctx := context.Background()
	room, err := svc.StartRoom(ctx, "A", domain.StartRoomRequest{SellerID: "B"})
	require.NoError(t, err)

	pub.failWith = errors.New("buffer full")
	resp, err := svc.SendMessage(ctx, "A", room.RoomID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Message.Text)
	assert.True(t, resp.Room.UpdatedAt.Equal(resp.Message.CreatedAt))

	messages, err := svc.GetMessages(ctx, "B", room.RoomID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestDeleteMessageOnlyBySender(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	room, err := svc.StartRoom(ctx, "A", domain.StartRoomRequest{SellerID: "B"})
	require.NoError(t, err)
	resp, err := svc.SendMessage(ctx, "A", room.RoomID, "hi")
	require.NoError(t, err)

	err = svc.DeleteMessage(ctx, "B", room.RoomID, resp.Message.MessageID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, svc.DeleteMessage(ctx, "A", room.RoomID, resp.Message.MessageID))
	err = svc.DeleteMessage(ctx, "A", room.RoomID, resp.Message.MessageID)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestDeleteRoomClosesChannel(t *testing.T) {
	svc, pub := newTestService(t, nil)
	ctx := context.Background()
	room, err := svc.StartRoom(ctx, "A", domain.StartRoomRequest{SellerID: "B"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRoom(ctx, "B", room.RoomID))
	assert.Equal(t, []string{room.RoomID}, pub.closed)

	_, err = svc.GetRoom(ctx, "A", room.RoomID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestAskGeneratesSession(t *testing.T) {
	mock := llm.NewMockClient().Reply("Hi there").Reply("Still here")
	svc, _ := newTestService(t, mock)
	ctx := context.Background()

	res, err := svc.Ask(ctx, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", res.Reply)
	assert.Regexp(t, `^sess_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, res.SessionID)

	again, err := svc.Ask(ctx, "still there?", res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, again.SessionID)
	// second request carries system prompt, first turn and the new message
	assert.Len(t, mock.Requests()[1].Messages, 4)
}

func TestAskPropagatesModelError(t *testing.T) {
	mock := llm.NewMockClient().Fail(errors.New("upstream down"))
	svc, _ := newTestService(t, mock)

	res, err := svc.Ask(context.Background(), "hello", "sess_1")
	require.Error(t, err)
	assert.Equal(t, "sess_1", res.SessionID)

	_, err = svc.Ask(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestPublishReportsDelivery(t *testing.T) {
	svc, pub := newTestService(t, nil)

	delivered, err := svc.Publish("room_x", map[string]string{"type": "notice"})
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Len(t, pub.events, 1)

	_, err = svc.Publish("", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
