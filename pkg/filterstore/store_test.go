package filterstore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := Open(context.Background(), db)
	require.NoError(t, err)
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.migrate(context.Background()))
	require.NoError(t, s.migrate(context.Background()))
}

func TestImportIsIdempotentByID(t *testing.T) {
	s := openTestStore(t)
	doc := ordersSeed()

	require.NoError(t, s.Import(context.Background(), doc))
	def1, ok := s.Get("order_summary")
	require.True(t, ok)

	require.NoError(t, s.Import(context.Background(), doc))
	def2, ok := s.Get("order_summary")
	require.True(t, ok)

	assert.Equal(t, def1, def2)
}

func TestGetUnknownFilterReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	_, ok := s.Get("does-not-exist")
	assert.False(t, ok)
}

func TestChainStepsResolveInOrder(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Import(context.Background(), ordersSeed()))
	require.NoError(t, s.Import(context.Background(), commonSeed()))
	require.NoError(t, s.Import(context.Background(), chainsSeed()))

	steps, ok := s.ChainSteps("top_high_value_orders")
	require.True(t, ok)
	assert.Equal(t, []string{"high_value_orders", "sort_by_total_desc", "limit_10"}, steps)
}

func TestChainWithUnknownStepIsRejected(t *testing.T) {
	s := openTestStore(t)
	doc := SeedDoc{Chains: []SeedChain{
		{ID: "broken", Steps: []string{"nonexistent"}},
	}}
	err := s.Import(context.Background(), doc)
	assert.Error(t, err)
}

func TestChainCycleIsRejected(t *testing.T) {
	s := openTestStore(t)
	doc := SeedDoc{
		Filters: []SeedFilter{
			{ID: "f1", Endpoint: "listOrders", Expression: "."},
		},
		Chains: []SeedChain{
			{ID: "cycleA", Steps: []string{"f1", "cycleB"}},
			{ID: "cycleB", Steps: []string{"cycleA"}},
		},
	}
	err := s.Import(context.Background(), doc)
	assert.Error(t, err)
}

func TestSearchFiltersByEndpointAndTerm(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Import(context.Background(), ordersSeed()))

	results, err := s.Search(context.Background(), "listOrders", "", "", "high_value")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "high_value_orders", results[0].ID)
}

func TestDefaultForReturnsRegisteredDefault(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Import(context.Background(), ordersSeed()))

	def, ok := s.DefaultFor("listOrders")
	require.True(t, ok)
	assert.Equal(t, "order_summary", def.ID)
}

func TestRequiredParameterSurfacesOnGet(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Import(context.Background(), orderItemsSeed()))

	def, ok := s.Get("high_value_items")
	require.True(t, ok)
	assert.Equal(t, []string{"threshold"}, def.Required)
}
