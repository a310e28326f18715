package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/novahub/internal/catalog"
)

func product(id, price string) catalog.Product {
	return catalog.Product{ID: id, Code: "P-" + id, Name: "Product " + id, Price: decimal.RequireFromString(price)}
}

func TestCartAddAndBulkAdd(t *testing.T) {
	var c Cart
	c.Add(product("1", "10"))
	c.Add(product("1", "10"))
	require.Len(t, c.Lines, 1)
	require.Equal(t, 2, c.Lines[0].Quantity)

	added := c.BulkAdd([]catalog.Product{product("1", "10"), product("2", "5")})
	require.Equal(t, 1, added)
	require.Len(t, c.Lines, 2)
	require.Equal(t, 2, c.Lines[0].Quantity, "bulk add must not bump existing lines")
	require.Equal(t, 1, c.Lines[1].Quantity)
}

func TestCartDecrementRemovesAtZero(t *testing.T) {
	var c Cart
	c.Add(product("1", "10"))
	require.NoError(t, c.Increment("1"))
	require.Equal(t, 2, c.Lines[0].Quantity)
	require.NoError(t, c.Decrement("1"))
	require.NoError(t, c.Decrement("1"))
	require.Empty(t, c.Lines)
	require.ErrorIs(t, c.Decrement("1"), ErrLineNotFound)
	require.ErrorIs(t, c.Remove("missing"), ErrLineNotFound)
}

func TestCartRefreshFollowsCatalog(t *testing.T) {
	var c Cart
	c.Add(product("1", "10"))
	c.Add(product("2", "20"))
	c.Refresh(map[string]catalog.Product{"2": product("2", "25")})
	require.Len(t, c.Lines, 1)
	require.Equal(t, "2", c.Lines[0].Product.ID)
	require.True(t, c.Lines[0].Product.Price.Equal(decimal.RequireFromString("25")))

	lines := c.PricingLines()
	require.Len(t, lines, 1)
	require.Equal(t, 1, lines[0].Quantity)
}

func TestCartClearDropsCode(t *testing.T) {
	c := Cart{AppliedCode: "WELCOME10"}
	c.Add(product("1", "10"))
	c.Clear()
	require.Empty(t, c.Lines)
	require.Empty(t, c.AppliedCode)
}
