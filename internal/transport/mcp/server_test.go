package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/estatehub/internal/domain"
	"github.com/xiaot623/estatehub/internal/repository"
	"github.com/xiaot623/estatehub/internal/tools"
)

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateListing(ctx, &domain.Listing{
		ListingID: "l1", Title: "Lakeside Residency", City: "Pune", Price: decimal.NewFromInt(4800000),
		BHK: "2", PropertyType: domain.PropertyTypeApartment, SellerID: "s1", CreatedAt: time.Now(),
	}))

	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterListingTools(registry, store))

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := NewServer(registry, nil).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListTools(t *testing.T) {
	cs := connect(t)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{tools.SearchListingsName, tools.GetListingDetailsName}, names)
}

func TestCallTools(t *testing.T) {
	cs := connect(t)
	ctx := context.Background()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.SearchListingsName,
		Arguments: map[string]any{"city": "pune", "maxPrice": 5000000},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "Lakeside Residency")

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.GetListingDetailsName,
		Arguments: map[string]any{"title": "Lakeview"},
	})
	require.NoError(t, err)
	assert.Equal(t, tools.PropertyNotFound, text(t, res))
}

func TestCallToolInvalidArguments(t *testing.T) {
	cs := connect(t)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      tools.GetListingDetailsName,
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "invalid arguments")
}
