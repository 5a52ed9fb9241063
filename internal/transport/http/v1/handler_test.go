package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/estatehub/internal/adapter/llm"
	"github.com/xiaot623/estatehub/internal/assistant"
	"github.com/xiaot623/estatehub/internal/domain"
	"github.com/xiaot623/estatehub/internal/policy"
	"github.com/xiaot623/estatehub/internal/repository"
	"github.com/xiaot623/estatehub/internal/service"
	"github.com/xiaot623/estatehub/internal/tools"
)

func newTestHandler(t *testing.T, client llm.LLMClient) (*Handler, *service.Service) {
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
	agent := assistant.New(client, registry, assistant.NewMemory(50), assistant.Config{Model: "m"}, nil, nil)

	svc := service.New(store, agent, engine, nil, nil, nil)
	return NewHandler(svc, nil), svc
}

func newRequest(method, target, body, userID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	return req
}

func TestAskReturnsReplyAndSession(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, llm.NewMockClient().Reply("Hello!"))

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/chat", `{"message":"hi"}`, ""), rec)
	require.NoError(t, h.Ask(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp domain.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hello!", resp.Reply)
	assert.NotEmpty(t, resp.SessionID)
}

func TestAskModelFailureRepliesAIError(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, llm.NewMockClient().Fail(errors.New("boom")))

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/v1/assistant/chat", `{"message":"hi","session_id":"sess_1"}`, ""), rec)
	require.NoError(t, h.Ask(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"AI error","session_id":"sess_1"}`, rec.Body.String())
}

func TestAskModelFailureReturnsNewSession(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, llm.NewMockClient().Fail(errors.New("boom")))

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/chat", `{"message":"hi"}`, ""), rec)
	require.NoError(t, h.Ask(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp domain.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, AIErrorReply, resp.Reply)
	assert.Regexp(t, `^sess_`, resp.SessionID)
}

func TestAskRequiresMessage(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/chat", `{"message":""}`, ""), rec)
	require.NoError(t, h.Ask(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireUser(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "/v1/chat/rooms", "", ""), rec)
	require.NoError(t, h.RequireUser(h.ListRooms)(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(newRequest(http.MethodGet, "/v1/chat/rooms", "", "A"), rec)
	require.NoError(t, h.RequireUser(h.ListRooms)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rooms":[]}`, rec.Body.String())
}

func TestChatRoutes(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, nil)
	h.RegisterRoutes(e)

	do := func(method, target, body, userID string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, newRequest(method, target, body, userID))
		return rec
	}

	rec := do(http.MethodPost, "/v1/chat/rooms", `{"seller_id":"B","listing_id":"l1"}`, "A")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var room domain.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &room))
	assert.Equal(t, "A", room.BuyerID)
	assert.Equal(t, "B", room.SellerID)

	rec = do(http.MethodPost, "/v1/chat/rooms/"+room.RoomID+"/messages", `{"text":"hi"}`, "A")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sent domain.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	require.NotNil(t, sent.Message)
	assert.Equal(t, "hi", sent.Message.Text)

	rec = do(http.MethodGet, "/v1/chat/rooms/"+room.RoomID, "", "B")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Messages, 1)

	// outsiders and unknown rooms
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/v1/chat/rooms/"+room.RoomID+"/messages", "", "C").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/v1/chat/rooms/room_missing", "", "A").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/v1/chat/rooms", `{"seller_id":"A"}`, "A").Code)

	// only the sender deletes
	msgPath := "/v1/chat/rooms/" + room.RoomID + "/messages/" + sent.Message.MessageID
	assert.Equal(t, http.StatusForbidden, do(http.MethodDelete, msgPath, "", "B").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodDelete, msgPath, "", "A").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, msgPath, "", "A").Code)

	assert.Equal(t, http.StatusOK, do(http.MethodDelete, "/v1/chat/rooms/"+room.RoomID, "", "B").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/v1/chat/rooms/"+room.RoomID, "", "A").Code)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
