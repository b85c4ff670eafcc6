package filterstore

// DefaultSeeds returns the built-in seed documents imported into a
// freshly opened store: field filters for orders and order items,
// inventory summaries, a handful of cross-cutting "common" filters, and
// the chains that compose them. Re-importing is a no-op beyond
// refreshing the metadata timestamp, since Import upserts by id.
func DefaultSeeds() []SeedDoc {
	return []SeedDoc{ordersSeed(), orderItemsSeed(), inventorySeed(), commonSeed(), chainsSeed()}
}

func ordersSeed() SeedDoc {
	return SeedDoc{Filters: []SeedFilter{
		{
			ID:          "order_summary",
			Endpoint:    "listOrders",
			Category:    "field",
			Kind:        "record",
			Description: "reduces an order to id, status, total, and currency",
			Expression:  `map({orderId: .AmazonOrderId, status: .OrderStatus, total: .OrderTotal.Amount, currency: .OrderTotal.CurrencyCode})`,
			IsDefault:   true,
		},
		{
			ID:          "high_value_orders",
			Endpoint:    "listOrders",
			Category:    "record",
			Kind:        "record",
			Description: "keeps only orders whose total exceeds a threshold parameter",
			Expression:  `filter(number(.OrderTotal.Amount) > $threshold)`,
			Parameters: []SeedParameter{
				{Name: "threshold", Required: false, Default: 100.0},
			},
		},
	}}
}

func orderItemsSeed() SeedDoc {
	return SeedDoc{Filters: []SeedFilter{
		{
			ID:          "high_value_items",
			Endpoint:    "getOrderItems",
			Category:    "record",
			Kind:        "record",
			Description: "keeps order items priced above a threshold parameter",
			Expression:  `filter(number(.ItemPrice.Amount) > $threshold)`,
			Parameters: []SeedParameter{
				{Name: "threshold", Required: true},
			},
		},
		{
			ID:          "item_summary",
			Endpoint:    "getOrderItems",
			Category:    "field",
			Kind:        "record",
			Description: "reduces an order item to sku, quantity, and price",
			Expression:  `map({sku: .SellerSKU, quantity: .QuantityOrdered, price: .ItemPrice.Amount})`,
			IsDefault:   true,
		},
	}}
}

func inventorySeed() SeedDoc {
	return SeedDoc{Filters: []SeedFilter{
		{
			ID:          "in_stock_only",
			Endpoint:    "inventoryInStock",
			Category:    "record",
			Kind:        "record",
			Description: "keeps inventory summaries with positive fulfillable quantity",
			Expression:  `filter(.totalFulfillable > 0)`,
			IsDefault:   true,
		},
	}}
}

func commonSeed() SeedDoc {
	return SeedDoc{Filters: []SeedFilter{
		{
			ID:          "sort_by_total_desc",
			Endpoint:    "listOrders",
			Category:    "sort",
			Kind:        "record",
			Description: "sorts a list of orders by total descending",
			Expression:  `sort(.OrderTotal.Amount, "desc")`,
		},
		{
			ID:          "limit_10",
			Endpoint:    "listOrders",
			Category:    "limit",
			Kind:        "record",
			Description: "caps a list at the first 10 elements",
			Expression:  `limit(10)`,
		},
	}}
}

func chainsSeed() SeedDoc {
	return SeedDoc{Chains: []SeedChain{
		{ID: "top_high_value_orders", Steps: []string{"high_value_orders", "sort_by_total_desc", "limit_10"}},
	}}
}
