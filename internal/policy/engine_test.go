package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/estatehub/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(context.Background(), DefaultPolicy)
	require.NoError(t, err)
	return engine
}

func TestAuthorizeRoomActions(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	room := &domain.Room{RoomID: "r1", BuyerID: "buyer", SellerID: "seller"}

	actions := []domain.Action{domain.ActionRoomRead, domain.ActionRoomJoin, domain.ActionRoomSend, domain.ActionRoomDelete}
	for _, action := range actions {
		for _, user := range []string{"buyer", "seller"} {
			d, err := engine.Authorize(ctx, Input{Action: action, UserID: user, Room: room})
			require.NoError(t, err)
			assert.True(t, d.Allow, "%s should be allowed %s", user, action)
		}

		d, err := engine.Authorize(ctx, Input{Action: action, UserID: "mallory", Room: room})
		require.NoError(t, err)
		assert.False(t, d.Allow)
		assert.Equal(t, "not a participant", d.Reason)

		d, err = engine.Authorize(ctx, Input{Action: action, UserID: "", Room: room})
		require.NoError(t, err)
		assert.False(t, d.Allow)
	}
}

func TestAuthorizeMessageDelete(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	room := &domain.Room{RoomID: "r1", BuyerID: "buyer", SellerID: "seller"}
	msg := &domain.Message{MessageID: "m1", RoomID: "r1", SenderID: "buyer"}

	d, err := engine.Authorize(ctx, Input{Action: domain.ActionMessageDelete, UserID: "buyer", Room: room, Message: msg})
	require.NoError(t, err)
	assert.True(t, d.Allow)

	d, err = engine.Authorize(ctx, Input{Action: domain.ActionMessageDelete, UserID: "seller", Room: room, Message: msg})
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, "only the sender can delete a message", d.Reason)

	d, err = engine.Authorize(ctx, Input{Action: domain.ActionMessageDelete, UserID: "mallory", Room: room, Message: msg})
	require.NoError(t, err)
	assert.False(t, d.Allow)
}

func TestAuthorizeUnknownAction(t *testing.T) {
	engine := newTestEngine(t)
	d, err := engine.Authorize(context.Background(), Input{
		Action: "room.rename", UserID: "buyer",
		Room: &domain.Room{BuyerID: "buyer", SellerID: "seller"},
	})
	require.NoError(t, err)
	assert.False(t, d.Allow)
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package broken\n\ndecision := {")
	assert.Error(t, err)
}
