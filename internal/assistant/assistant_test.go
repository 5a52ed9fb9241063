package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/estatehub/internal/adapter/llm"
	"github.com/xiaot623/estatehub/internal/domain"
	"github.com/xiaot623/estatehub/internal/repository"
	"github.com/xiaot623/estatehub/internal/telemetry"
	"github.com/xiaot623/estatehub/internal/tools"
)

func newTestAgent(t *testing.T, client llm.LLMClient, cfg Config) (*Agent, *Memory) {
	t.Helper()
	return newTestAgentWithMemory(t, client, cfg, NewMemory(50))
}

func newTestAgentWithMemory(t *testing.T, client llm.LLMClient, cfg Config, memory *Memory) (*Agent, *Memory) {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateListing(context.Background(), &domain.Listing{
		ListingID: "l1", Title: "Lakeside Residency", City: "Pune", Price: decimal.NewFromInt(4800000),
		BHK: "2", PropertyType: domain.PropertyTypeApartment, Amenities: []string{"pool", "gym"},
		SellerID: "s1", CreatedAt: time.Now(),
	}))

	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterListingTools(registry, store))
	return New(client, registry, memory, cfg, nil, telemetry.NewMetrics()), memory
}

func TestRunReturnsReplyWithoutTools(t *testing.T) {
	mock := llm.NewMockClient().Reply("Hello! How can I help?")
	agent, memory := newTestAgent(t, mock, Config{Model: "m"})

	reply, err := agent.Run(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", reply)
	assert.Equal(t, 2, memory.Len("s1"))

	req := mock.Requests()[0]
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, SystemPrompt, req.Messages[0].Content)
	assert.Len(t, req.Tools, 2)
	require.NotNil(t, req.Temperature)
}

func TestRunExecutesToolAndFeedsResult(t *testing.T) {
	mock := llm.NewMockClient().
		CallTool(tools.SearchListingsName, map[string]any{"city": "Pune", "maxPrice": 5000000}).
		Reply("Lakeside Residency is available for 48 lakh.")
	agent, memory := newTestAgent(t, mock, Config{Model: "m"})

	reply, err := agent.Run(context.Background(), "s1", "2BHK in Pune under 50 lakh?")
	require.NoError(t, err)
	assert.Equal(t, "Lakeside Residency is available for 48 lakh.", reply)

	requests := mock.Requests()
	require.Len(t, requests, 2)
	last := requests[1].Messages[len(requests[1].Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "Lakeside Residency")

	// user, assistant(tool call), tool result, assistant(final)
	assert.Equal(t, 4, memory.Len("s1"))
}

func TestRunRemembersPreviousTurns(t *testing.T) {
	mock := llm.NewMockClient().Reply("Noted.").Reply("You asked about Lakeside.")
	agent, _ := newTestAgent(t, mock, Config{Model: "m"})
	ctx := context.Background()

	_, err := agent.Run(ctx, "s1", "Tell me about Lakeside Residency")
	require.NoError(t, err)
	_, err = agent.Run(ctx, "s1", "What facilities does it have?")
	require.NoError(t, err)

	second := mock.Requests()[1]
	var contents []string
	for _, m := range second.Messages {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "Tell me about Lakeside Residency")
	assert.Contains(t, contents, "What facilities does it have?")
}

func TestRunRemembersToolTurnLongerThanWindow(t *testing.T) {
	mock := llm.NewMockClient().
		CallTool(tools.SearchListingsName, map[string]any{"city": "Pune"}).
		Reply("Lakeside Residency is available.").
		Reply("It has a pool and a gym.")
	agent, memory := newTestAgentWithMemory(t, mock, Config{Model: "m"}, NewMemory(3))
	ctx := context.Background()

	_, err := agent.Run(ctx, "s1", "Anything in Pune?")
	require.NoError(t, err)
	assert.Equal(t, 4, memory.Len("s1"))

	_, err = agent.Run(ctx, "s1", "What facilities?")
	require.NoError(t, err)

	second := mock.Requests()[2]
	var contents []string
	for _, m := range second.Messages {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "Anything in Pune?")
	assert.Equal(t, "user", memory.History("s1")[0].Role)
}

func TestRunIsolatesSessions(t *testing.T) {
	mock := llm.NewMockClient().Reply("one").Reply("two")
	agent, _ := newTestAgent(t, mock, Config{Model: "m"})
	ctx := context.Background()

	_, err := agent.Run(ctx, "alice", "secret question")
	require.NoError(t, err)
	_, err = agent.Run(ctx, "bob", "hello")
	require.NoError(t, err)

	for _, m := range mock.Requests()[1].Messages {
		assert.NotEqual(t, "secret question", m.Content)
	}
}

func TestRunDoesNotCommitFailedTurn(t *testing.T) {
	mock := llm.NewMockClient().
		CallTool(tools.SearchListingsName, map[string]any{"city": "Pune"}).
		Fail(errors.New("upstream 503"))
	agent, memory := newTestAgent(t, mock, Config{Model: "m"})

	_, err := agent.Run(context.Background(), "s1", "flats in Pune")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 503")
	assert.Equal(t, 0, memory.Len("s1"))
}

func TestRunToolErrorIsFedBack(t *testing.T) {
	mock := llm.NewMockClient().
		CallTool("book_visit", map[string]any{}).
		CallTool(tools.GetListingDetailsName, map[string]any{}).
		Reply("Sorry, I could not find that.")
	agent, _ := newTestAgent(t, mock, Config{Model: "m"})

	reply, err := agent.Run(context.Background(), "s1", "book a visit")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I could not find that.", reply)

	requests := mock.Requests()
	require.Len(t, requests, 3)
	first := requests[1].Messages[len(requests[1].Messages)-1]
	assert.True(t, strings.HasPrefix(first.Content, "error: unknown tool"))
	second := requests[2].Messages[len(requests[2].Messages)-1]
	assert.True(t, strings.HasPrefix(second.Content, "error: invalid arguments"))
}

func TestRunParallelToolCallsKeepOrder(t *testing.T) {
	mock := llm.NewMockClient().
		Respond(&llm.ChatMessage{Role: "assistant", ToolCalls: []llm.ToolCall{
			{ID: "a", Function: llm.ToolCallFunction{Name: tools.GetListingDetailsName, Arguments: `{"title":"Lakeview"}`}},
			{ID: "b", Function: llm.ToolCallFunction{Name: tools.GetListingDetailsName, Arguments: `{"title":"Lakeside"}`}},
			{ID: "c", Function: llm.ToolCallFunction{Name: tools.SearchListingsName, Arguments: `{"city":"Goa"}`}},
		}}).
		Reply("done")
	agent, _ := newTestAgent(t, mock, Config{Model: "m"})

	_, err := agent.Run(context.Background(), "s1", "compare")
	require.NoError(t, err)

	msgs := mock.Requests()[1].Messages
	results := msgs[len(msgs)-3:]
	assert.Equal(t, "a", results[0].ToolCallID)
	assert.Equal(t, tools.PropertyNotFound, results[0].Content)
	assert.Equal(t, "b", results[1].ToolCallID)
	assert.Contains(t, results[1].Content, "Lakeside Residency")
	assert.Equal(t, "c", results[2].ToolCallID)
	assert.Equal(t, tools.NoPropertiesFound, results[2].Content)
}

func TestRunStopsAfterMaxTurns(t *testing.T) {
	mock := llm.NewMockClient()
	for i := 0; i < 5; i++ {
		mock.CallTool(tools.SearchListingsName, map[string]any{})
	}
	agent, memory := newTestAgent(t, mock, Config{Model: "m", MaxTurns: 2})

	_, err := agent.Run(context.Background(), "s1", "loop forever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded 2 tool rounds")
	assert.Len(t, mock.Requests(), 3)
	assert.Equal(t, 0, memory.Len("s1"))
}

func TestRunBoundsToolExecution(t *testing.T) {
	registry := tools.NewRegistry()
	slow, err := tools.NewTool("slow", "waits for cancellation", func(ctx context.Context, in struct{}) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err)
	require.NoError(t, registry.Register(slow))

	mock := llm.NewMockClient().CallTool("slow", map[string]any{}).Reply("gave up")
	agent := New(mock, registry, NewMemory(10), Config{Model: "m", ToolTimeout: 20 * time.Millisecond}, nil, nil)

	reply, err := agent.Run(context.Background(), "s1", "go")
	require.NoError(t, err)
	assert.Equal(t, "gave up", reply)

	last := mock.Requests()[1].Messages
	assert.Equal(t, "error: "+context.DeadlineExceeded.Error(), last[len(last)-1].Content)
}

type blockingClient struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (b *blockingClient) CreateChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.maxSeen {
		b.maxSeen = b.inFlight
	}
	b.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()
	return &llm.ChatCompletionResponse{Choices: []llm.Choice{{Message: &llm.ChatMessage{Role: "assistant", Content: "ok"}}}}, nil
}

func TestRunSerializesSameSession(t *testing.T) {
	client := &blockingClient{}
	agent, memory := newTestAgent(t, client, Config{Model: "m"})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agent.Run(context.Background(), "shared", "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, client.maxSeen)
	assert.Equal(t, 10, memory.Len("shared"))
}

func TestTrimWindowStartsAtUserTurn(t *testing.T) {
	history := []llm.ChatMessage{
		{Role: "user", Content: "q1"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "x"}}},
		{Role: "tool", ToolCallID: "x", Content: "r"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
		{Role: "assistant", Content: "a2"},
	}
	got := trimWindow(history, 4)
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[0].Content)

	assert.Len(t, trimWindow(history, 10), 6)
}

func TestTrimWindowKeepsOversizedNewestTurn(t *testing.T) {
	history := []llm.ChatMessage{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "x"}}},
		{Role: "tool", ToolCallID: "x", Content: "r"},
		{Role: "assistant", Content: "a2"},
	}
	got := trimWindow(history, 3)
	require.Len(t, got, 4)
	assert.Equal(t, "q2", got[0].Content)
	assert.Equal(t, "a2", got[3].Content)

	single := trimWindow(history[2:], 1)
	require.Len(t, single, 4)
	assert.Equal(t, "user", single[0].Role)
}
