// Package storetest is a conformance suite for [table.Client]
// implementations. Each backend package runs the suite against a real
// instance of itself: badgerstore in-process, dynamodb and postgres behind
// the integration build tag.
//
// Every helper uses a fresh random partition, so the suite is safe to run
// repeatedly against a shared table.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/osrsgoaltracker/goaldao/table"
)

func newPartitionKey() string {
	return "USER#" + uuid.NewString()
}

func item(pk, sk, body string) table.Item {
	return table.Item{PartitionKey: pk, SortKey: sk, Body: []byte(body)}
}

// TestPutAndGet verifies that an upserted item reads back intact, that a
// second Put replaces it, and that a vacant key reports ErrItemNotFound.
func TestPutAndGet(t *testing.T, c table.Client) {
	ctx := context.Background()
	pk := newPartitionKey()

	require.NoError(t, c.Put(ctx, item(pk, "METADATA", `{"v":1}`)))

	got, err := c.Get(ctx, pk, "METADATA")
	require.NoError(t, err)
	require.Equal(t, pk, got.PartitionKey)
	require.Equal(t, "METADATA", got.SortKey)
	require.JSONEq(t, `{"v":1}`, string(got.Body))

	require.NoError(t, c.Put(ctx, item(pk, "METADATA", `{"v":2}`)))

	got, err = c.Get(ctx, pk, "METADATA")
	require.NoError(t, err)
	require.JSONEq(t, `{"v":2}`, string(got.Body))

	_, err = c.Get(ctx, pk, "MISSING")
	require.ErrorIs(t, err, table.ErrItemNotFound)
}

// TestPutIfAbsent verifies the conditional-write contract: the first write
// wins and the second fails with ErrConditionFailed, leaving the first
// item's body in place.
func TestPutIfAbsent(t *testing.T, c table.Client) {
	ctx := context.Background()
	pk := newPartitionKey()

	require.NoError(t, c.PutIfAbsent(ctx, item(pk, "METADATA", `{"v":"first"}`)))

	err := c.PutIfAbsent(ctx, item(pk, "METADATA", `{"v":"second"}`))
	require.ErrorIs(t, err, table.ErrConditionFailed)

	got, err := c.Get(ctx, pk, "METADATA")
	require.NoError(t, err)
	require.JSONEq(t, `{"v":"first"}`, string(got.Body))
}

// TestConcurrentPutIfAbsent races writers on a single key and requires
// exactly one winner.
func TestConcurrentPutIfAbsent(t *testing.T, c table.Client) {
	ctx := context.Background()
	pk := newPartitionKey()

	const writers = 8

	var g errgroup.Group
	results := make([]error, writers)

	for i := 0; i < writers; i++ {
		g.Go(func() error {
			results[i] = c.PutIfAbsent(ctx, item(pk, "METADATA", fmt.Sprintf(`{"writer":%d}`, i)))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	winners := 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, table.ErrConditionFailed):
		default:
			t.Fatalf("unexpected error from concurrent PutIfAbsent: %v", err)
		}
	}
	require.Equal(t, 1, winners, "expected exactly one winning writer")
}

// TestQueryPrefixOrdering verifies lexicographic ascending order and that
// the prefix excludes unrelated sort keys.
func TestQueryPrefixOrdering(t *testing.T, c table.Client) {
	ctx := context.Background()
	pk := newPartitionKey()

	sortKeys := []string{
		"CHARACTER#A#GOAL#g1#2025-01-03T00:00:00Z",
		"CHARACTER#A#GOAL#g1#2025-01-01T00:00:00Z",
		"CHARACTER#A#GOAL#g1#2025-01-02T00:00:00Z",
		"NOTIFICATION#SMS",
	}
	for _, sk := range sortKeys {
		require.NoError(t, c.Put(ctx, item(pk, sk, `{}`)))
	}

	page, err := c.QueryPrefix(ctx, pk, "CHARACTER#A#GOAL#g1#", table.QueryOptions{})
	require.NoError(t, err)
	require.Empty(t, page.NextToken)
	require.Len(t, page.Items, 3)
	require.Equal(t, "CHARACTER#A#GOAL#g1#2025-01-01T00:00:00Z", page.Items[0].SortKey)
	require.Equal(t, "CHARACTER#A#GOAL#g1#2025-01-02T00:00:00Z", page.Items[1].SortKey)
	require.Equal(t, "CHARACTER#A#GOAL#g1#2025-01-03T00:00:00Z", page.Items[2].SortKey)
}

// TestQueryPrefixPagination walks a partition in pages of two and verifies
// the continuation tokens stitch the pages into the full ordered sequence.
func TestQueryPrefixPagination(t *testing.T, c table.Client) {
	ctx := context.Background()
	pk := newPartitionKey()

	const total = 5
	for i := 0; i < total; i++ {
		sk := fmt.Sprintf("CHARACTER#A#GOAL#g1#2025-01-0%dT00:00:00Z", i+1)
		require.NoError(t, c.Put(ctx, item(pk, sk, fmt.Sprintf(`{"i":%d}`, i))))
	}

	var collected []string
	token := ""
	pages := 0

	for {
		page, err := c.QueryPrefix(ctx, pk, "CHARACTER#A#GOAL#g1#", table.QueryOptions{
			Limit:      2,
			StartToken: token,
		})
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Items), 2)

		for _, it := range page.Items {
			collected = append(collected, it.SortKey)
		}

		pages++
		require.LessOrEqual(t, pages, total, "pagination did not terminate")

		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	require.Len(t, collected, total)
	for i := 1; i < len(collected); i++ {
		require.Less(t, collected[i-1], collected[i], "pages out of order")
	}
}

// TestQueryPrefixRange verifies inclusive from/to sort-key bounds.
func TestQueryPrefixRange(t *testing.T, c table.Client) {
	ctx := context.Background()
	pk := newPartitionKey()

	for _, day := range []int{1, 2, 3, 4} {
		sk := fmt.Sprintf("CHARACTER#A#GOAL#g1#2025-01-0%dT00:00:00Z", day)
		require.NoError(t, c.Put(ctx, item(pk, sk, `{}`)))
	}

	page, err := c.QueryPrefix(ctx, pk, "CHARACTER#A#GOAL#g1#", table.QueryOptions{
		FromSortKey: "CHARACTER#A#GOAL#g1#2025-01-02T00:00:00Z",
		ToSortKey:   "CHARACTER#A#GOAL#g1#2025-01-03T00:00:00Z",
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, "CHARACTER#A#GOAL#g1#2025-01-02T00:00:00Z", page.Items[0].SortKey)
	require.Equal(t, "CHARACTER#A#GOAL#g1#2025-01-03T00:00:00Z", page.Items[1].SortKey)
}

// TestQueryIndex verifies the email index: a lookup finds exactly the item
// carrying the attribute, and a vacant value yields no items.
func TestQueryIndex(t *testing.T, c table.Client) {
	ctx := context.Background()
	pk := newPartitionKey()
	email := uuid.NewString() + "@example.com"

	it := item(pk, "METADATA", `{"email":"`+email+`"}`)
	it.IndexAttrs = map[string]string{table.EmailAttribute: email}
	require.NoError(t, c.Put(ctx, it))

	items, err := c.QueryIndex(ctx, table.EmailIndex, table.EmailAttribute, email)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, pk, items[0].PartitionKey)
	require.Equal(t, "METADATA", items[0].SortKey)

	items, err = c.QueryIndex(ctx, table.EmailIndex, table.EmailAttribute, "nobody-"+email)
	require.NoError(t, err)
	require.Empty(t, items)
}

// RunAll runs the whole conformance suite as subtests.
func RunAll(t *testing.T, c table.Client) {
	t.Run("PutAndGet", func(t *testing.T) { TestPutAndGet(t, c) })
	t.Run("PutIfAbsent", func(t *testing.T) { TestPutIfAbsent(t, c) })
	t.Run("ConcurrentPutIfAbsent", func(t *testing.T) { TestConcurrentPutIfAbsent(t, c) })
	t.Run("QueryPrefixOrdering", func(t *testing.T) { TestQueryPrefixOrdering(t, c) })
	t.Run("QueryPrefixPagination", func(t *testing.T) { TestQueryPrefixPagination(t, c) })
	t.Run("QueryPrefixRange", func(t *testing.T) { TestQueryPrefixRange(t, c) })
	t.Run("QueryIndex", func(t *testing.T) { TestQueryIndex(t, c) })
}
